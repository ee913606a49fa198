package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// enterChoose resets per-round player state and, outside board mode,
// draws the next prize when none is at stake. Hold is carried, not
// reset; settlement guarantees it is already zero.
func (s *Server) enterChoose(room *Room) {
	room.Phase = phaseChoose
	room.Participants = nil

	for _, p := range room.Players {
		p.resetRound()
	}

	if !room.BoardMode && room.CurrentItem == "" {
		room.CurrentItem = pickItem()
	}
}

func (s *Server) handleStart(c *Client) {
	room := s.registry.get(c.roomID)
	if room == nil {
		return
	}

	switch {
	case !room.isHost(c.playerName):
		s.sendTo(c, errorMsg("Only the host can start the game."))
		return
	case room.Started:
		s.sendTo(c, errorMsg("The game has already started."))
		return
	case len(room.Players) < minPlayers:
		s.sendTo(c, errorMsg(fmt.Sprintf("At least %d players are needed to start.", minPlayers)))
		return
	}

	room.Started = true
	s.registry.markStarted(room)
	s.enterChoose(room)

	log.Info().Str("room", room.ID).Int("players", len(room.Players)).Msg("game started")

	for member := range room.conns {
		s.sendTo(member, GameStartedMessage{Type: "game:started", Room: viewRoom(room, member.playerName)})
	}
	s.broadcastRoomList()
}

// handleSetItem lets a board-mode host put a prize (or nothing) on
// the block, resetting any in-flight round.
func (s *Server) handleSetItem(c *Client, item string) {
	room := s.registry.get(c.roomID)
	if room == nil || !room.Started || room.GameOver {
		return
	}

	switch {
	case !room.isHost(c.playerName):
		s.sendTo(c, errorMsg("Only the host can set the item."))
		return
	case !room.BoardMode:
		s.sendTo(c, errorMsg("The item is chosen automatically in this room."))
		return
	}

	s.enterChoose(room)
	room.CurrentItem = strings.TrimSpace(item)
	s.registry.touch(room)

	log.Debug().Str("room", room.ID).Str("item", room.CurrentItem).Msg("item set")

	s.broadcastRoom(room)
}

// handleLockPart records a participation choice. Sitting a round out
// pays a one-time bonus.
func (s *Server) handleLockPart(c *Client, will bool) {
	room := s.registry.get(c.roomID)
	if room == nil || !room.Started || room.GameOver {
		return
	}

	player := room.player(c.playerName)
	if player == nil {
		return
	}

	switch {
	case room.Phase != phaseChoose:
		s.sendTo(c, errorMsg("Participation is not being chosen right now."))
		return
	case room.BoardMode && room.CurrentItem == "":
		s.sendTo(c, errorMsg("The host has not put an item up yet."))
		return
	case player.ReadyPart:
		s.sendTo(c, errorMsg("You have already locked your choice."))
		return
	}

	choice := will
	player.WillParticipate = &choice
	player.ReadyPart = true

	if !choice {
		player.Balance += sitOutBonus
	}

	s.registry.touch(room)

	if !s.checkChooseAdvance(room) {
		s.broadcastRoom(room)
	}
}

// checkChooseAdvance fires once every player has locked a choice.
// Zero participants wastes the item, one wins it for free, two or
// more open the auction. Reports whether it acted.
func (s *Server) checkChooseAdvance(room *Room) bool {
	if !room.allLockedIn() {
		return false
	}

	participants := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		if p.WillParticipate != nil && *p.WillParticipate {
			participants = append(participants, p.Name)
		}
	}

	switch len(participants) {
	case 0:
		s.completeRound(room, participants, nil)
	case 1:
		winner := room.player(participants[0])
		winner.Balance += winner.Hold
		winner.Hold = 0
		winner.Items = append(winner.Items, room.CurrentItem)
		s.completeRound(room, participants, participants)
	default:
		room.Participants = participants
		room.Phase = phaseBid
		s.broadcastRoom(room)
	}

	return true
}

// handleConfirmBid escrows a sealed bid. The amount is floored to the
// bid step and clamped to the bidder's reachable funds; cancellation
// is the same path with amount zero.
func (s *Server) handleConfirmBid(c *Client, amount int64) {
	room := s.registry.get(c.roomID)
	if room == nil || !room.Started || room.GameOver {
		return
	}

	player := room.player(c.playerName)
	if player == nil {
		return
	}

	switch {
	case room.Phase != phaseBid:
		s.sendTo(c, errorMsg("Bidding is not open right now."))
		return
	case !room.isParticipant(player.Name):
		s.sendTo(c, errorMsg("You are not in this auction."))
		return
	case player.ReadyBid:
		s.sendTo(c, errorMsg("You have already confirmed a bid."))
		return
	}

	if amount < 0 {
		amount = 0
	}
	amount -= amount % bidStep
	if reachable := player.Balance + player.Hold; amount > reachable {
		amount = reachable
	}

	player.Balance += player.Hold - amount
	player.Hold = amount
	player.Bid = amount
	player.ReadyBid = true

	s.registry.touch(room)

	if !s.checkBidSettle(room) {
		s.broadcastRoom(room)
	}
}

// checkBidSettle settles the auction once every participant has
// confirmed.
func (s *Server) checkBidSettle(room *Room) bool {
	if !room.allBidsIn() {
		return false
	}

	s.settle(room)
	return true
}

// settle resolves the sealed-bid auction in one atomic step: highest
// hold wins, ties all win, losers are refunded, winning holds are
// spent. All-zero holds means everyone opted to take the item free,
// and ties share identically, so all win.
func (s *Server) settle(room *Room) {
	var highest int64
	for _, name := range room.Participants {
		if p := room.player(name); p != nil && p.Hold > highest {
			highest = p.Hold
		}
	}

	winners := make([]string, 0, len(room.Participants))
	for _, name := range room.Participants {
		p := room.player(name)
		if p == nil {
			continue
		}
		if p.Hold == highest {
			winners = append(winners, name)
			p.Items = append(p.Items, room.CurrentItem)
			if highest == 0 {
				p.Balance += p.Hold
			}
			p.Hold = 0
			continue
		}
		p.Balance += p.Hold
		p.Hold = 0
	}

	// Non-participants never escrow, but refund defensively so a
	// settlement can only ever restore conservation, not break it.
	for _, p := range room.Players {
		if !room.isParticipant(p.Name) && p.Hold != 0 {
			p.Balance += p.Hold
			p.Hold = 0
		}
	}

	log.Debug().Str("room", room.ID).Str("item", room.CurrentItem).Strs("winners", winners).Int64("price", highest).Msg("auction settled")

	s.completeRound(room, room.Participants, winners)
}

// completeRound records the outcome, checks every inventory for a
// finished game, and either ends the game or opens the next round.
func (s *Server) completeRound(room *Room, participants, winners []string) {
	item := room.CurrentItem

	room.Round++
	room.LastWinners = append([]string{}, winners...)
	room.LastItem = item
	room.logRound(RoundLog{
		Round:        room.Round,
		Item:         item,
		Participants: append([]string{}, participants...),
		Winners:      append([]string{}, winners...),
	})

	var finalWinners []string
	for _, p := range room.Players {
		if checkWin(p.Items) {
			finalWinners = append(finalWinners, p.Name)
		}
	}

	if len(finalWinners) > 0 {
		s.endGame(room, finalWinners, fmt.Sprintf("%s won the game!", strings.Join(finalWinners, ", ")))
		return
	}

	settled := room.Round
	room.CurrentItem = ""
	s.enterChoose(room)

	for c := range room.conns {
		s.sendTo(c, RoundResultMessage{
			Type:           "round:result",
			Round:          settled,
			Item:           item,
			Winners:        append([]string{}, winners...),
			IsWinner:       contains(winners, c.playerName),
			WasParticipant: contains(participants, c.playerName),
			Room:           viewRoom(room, c.playerName),
		})
	}
}

// endGame freezes the room, reveals everything to everyone, and
// schedules deletion after the grace window.
func (s *Server) endGame(room *Room, winners []string, message string) {
	room.GameOver = true
	room.FinalWinners = append([]string{}, winners...)

	log.Info().Str("room", room.ID).Strs("winners", winners).Int("rounds", room.Round).Msg("game over")

	final := viewFinalRoom(room)
	for c := range room.conns {
		s.sendTo(c, GameEndedMessage{
			Type:    "game:ended",
			Message: message,
			Winners: append([]string{}, winners...),
			Room:    final,
		})
	}

	s.registry.scheduleEnd(room)
}

// handleEnd lets the host force the game over from any phase.
func (s *Server) handleEnd(c *Client) {
	room := s.registry.get(c.roomID)
	if room == nil || !room.Started || room.GameOver {
		return
	}

	if !room.isHost(c.playerName) {
		s.sendTo(c, errorMsg("Only the host can end the game."))
		return
	}

	var winners []string
	for _, p := range room.Players {
		if checkWin(p.Items) {
			winners = append(winners, p.Name)
		}
	}

	s.endGame(room, winners, "The host ended the game.")
}
