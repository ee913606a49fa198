package main

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	phaseChoose = "choose"
	phaseBid    = "bid"
)

const roundLogCapacity = 20

// RoundLog is one bounded-history entry of a settled round.
type RoundLog struct {
	Round        int      `json:"round"`
	Item         string   `json:"item"`
	Participants []string `json:"participants"`
	Winners      []string `json:"winners"`
}

// Room is one isolated game instance. All mutation happens on the
// server event loop, so the struct carries no lock.
type Room struct {
	ID        string
	HostName  string
	BoardMode bool
	CreatedAt time.Time

	Started  bool
	GameOver bool
	Round    int
	Phase    string

	CurrentItem  string
	Participants []string
	LastWinners  []string
	LastItem     string
	RoundLogs    []RoundLog
	FinalWinners []string

	// Join order; the first entry is the host at creation time.
	Players []*Player

	conns map[*Client]struct{}

	// Lifecycle timers: lobby runs pre-start, idle runs post-start and
	// is renewed by every mutating action, end is the post-game grace.
	lobbyTimer clockwork.Timer
	idleTimer  clockwork.Timer
	endTimer   clockwork.Timer
}

func (r *Room) player(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) addPlayer(p *Player) {
	r.Players = append(r.Players, p)
}

// removePlayer drops a player by name, preserving join order.
func (r *Room) removePlayer(name string) bool {
	dst := r.Players[:0]
	removed := false
	for _, p := range r.Players {
		if p.Name == name {
			removed = true
			continue
		}
		dst = append(dst, p)
	}
	r.Players = dst
	return removed
}

func (r *Room) playerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	return names
}

func (r *Room) isHost(name string) bool {
	return name != "" && name == r.HostName
}

// allLockedIn reports whether every player, participant or not, has
// submitted a participation choice.
func (r *Room) allLockedIn() bool {
	for _, p := range r.Players {
		if !p.ReadyPart {
			return false
		}
	}
	return len(r.Players) > 0
}

// allBidsIn reports whether every participant has confirmed a bid.
func (r *Room) allBidsIn() bool {
	for _, name := range r.Participants {
		p := r.player(name)
		if p == nil || !p.ReadyBid {
			return false
		}
	}
	return len(r.Participants) > 0
}

func (r *Room) isParticipant(name string) bool {
	for _, n := range r.Participants {
		if n == name {
			return true
		}
	}
	return false
}

// logRound appends a bounded history entry, evicting the oldest.
func (r *Room) logRound(entry RoundLog) {
	r.RoundLogs = append(r.RoundLogs, entry)
	if len(r.RoundLogs) > roundLogCapacity {
		r.RoundLogs = r.RoundLogs[len(r.RoundLogs)-roundLogCapacity:]
	}
}

func (r *Room) stopTimers() {
	for _, t := range []clockwork.Timer{r.lobbyTimer, r.idleTimer, r.endTimer} {
		if t != nil {
			t.Stop()
		}
	}
	r.lobbyTimer, r.idleTimer, r.endTimer = nil, nil, nil

	for _, p := range r.Players {
		p.cancelGrace()
	}
}
