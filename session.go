package main

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// Client is one websocket connection. The transport id is ephemeral;
// durable identity is the (room, player name) binding.
type Client struct {
	conn   *websocket.Conn
	send   chan any
	id     string
	closed bool

	// Set once the connection is bound to a room.
	roomID     string
	playerName string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan any, 32),
		id:   uuid.NewString(),
	}
}

// Server owns all mutable game state. Every inbound event - a decoded
// message, a connect, a disconnect, a timer fire - is posted to one
// queue and runs to completion on the run loop, so room mutation
// needs no locks and every broadcast reflects a finished mutation.
type Server struct {
	cfg      *Config
	clock    clockwork.Clock
	registry *Registry
	events   chan func()
	conns    map[*Client]struct{}
}

func newServer(cfg *Config, clock clockwork.Clock) *Server {
	s := &Server{
		cfg:    cfg,
		clock:  clock,
		events: make(chan func(), 256),
		conns:  make(map[*Client]struct{}),
	}

	s.registry = newRegistry(cfg, clock, s.post)
	s.registry.onDelete = s.roomDeleted

	return s
}

func (s *Server) run(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			ev()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) post(ev func()) {
	s.events <- ev
}

// sendTo queues a message for one client, dropping the client if its
// send buffer is full (a reader that slow is as good as gone).
func (s *Server) sendTo(c *Client, msg any) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		s.dropClient(c)
	}
}

func (s *Server) dropClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)

	delete(s.conns, c)
	if room := s.registry.get(c.roomID); room != nil {
		delete(room.conns, c)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// register runs when a connection is established.
func (s *Server) register(c *Client) {
	s.conns[c] = struct{}{}
	s.sendTo(c, RoomListMessage{Type: "rooms:list", Rooms: s.registry.listActive(roomListLimit)})
}

// disconnect runs when a connection's read pump exits. The bound
// player, if any, is kept for a grace window so the same name can
// reclaim their seat.
func (s *Server) disconnect(c *Client) {
	roomID, name := c.roomID, c.playerName
	s.dropClient(c)

	room := s.registry.get(roomID)
	if room == nil || name == "" {
		return
	}

	player := room.player(name)
	if player == nil || player.ConnID != c.id {
		// A reconnection already rebound this seat.
		return
	}

	player.ConnID = ""
	log.Debug().Str("room", room.ID).Str("player", name).Msg("disconnected, grace started")

	player.cancelGrace()
	player.graceTimer = s.clock.AfterFunc(s.cfg.reconnectGrace, func() {
		s.post(func() {
			r := s.registry.get(roomID)
			if r == nil {
				return
			}
			p := r.player(name)
			if p == nil || p.connected() {
				return
			}
			log.Info().Str("room", r.ID).Str("player", name).Msg("grace expired, removing player")
			s.removePlayer(r, name, true)
		})
	})

	s.broadcastRoom(room)
}

// handleMessage dispatches one decoded client message.
func (s *Server) handleMessage(c *Client, msg ClientMessage) {
	if c.closed {
		return
	}

	switch msg.Type {
	case "rooms:get":
		s.sendTo(c, RoomListMessage{Type: "rooms:list", Rooms: s.registry.listActive(roomListLimit)})
	case "room:create":
		s.handleCreate(c, msg)
	case "room:join":
		s.handleJoin(c, msg)
	case "room:leave":
		s.handleLeave(c)
	case "room:delete":
		s.handleDelete(c)
	case "game:start":
		s.handleStart(c)
	case "game:setItem":
		s.handleSetItem(c, msg.Item)
	case "game:lockPart":
		s.handleLockPart(c, msg.WillParticipate)
	case "game:confirmBid":
		s.handleConfirmBid(c, msg.Amount)
	case "game:cancelBid":
		s.handleConfirmBid(c, 0)
	case "game:end":
		s.handleEnd(c)
	default:
		// ignore unknown types
	}
}

func (s *Server) handleCreate(c *Client, msg ClientMessage) {
	if c.roomID != "" {
		s.sendTo(c, errorMsg("You are already in a room."))
		return
	}

	hostName := normalizeName(msg.HostName)
	if hostName == "" {
		s.sendTo(c, errorMsg("A display name is required."))
		return
	}

	room := s.registry.create(hostName, msg.BoardMode)

	host := newPlayer(hostName)
	host.ConnID = c.id
	room.addPlayer(host)

	c.roomID = room.ID
	c.playerName = hostName
	room.conns[c] = struct{}{}

	log.Info().Str("room", room.ID).Str("player", hostName).Bool("board", room.BoardMode).Msg("room created")

	s.sendTo(c, RoomCreatedMessage{Type: "room:created", Room: viewRoom(room, hostName)})
	s.broadcastRoomList()
}

func (s *Server) handleJoin(c *Client, msg ClientMessage) {
	if c.roomID != "" {
		s.sendTo(c, errorMsg("You are already in a room."))
		return
	}

	room := s.registry.get(msg.RoomID)
	if room == nil {
		s.sendTo(c, errorMsg("That room no longer exists."))
		return
	}

	name := normalizeName(msg.PlayerName)
	if name == "" {
		s.sendTo(c, errorMsg("A display name is required."))
		return
	}

	// A name already seated in the room means reconnection, not a new
	// player - unless its owner is still connected.
	if existing := room.player(name); existing != nil {
		if existing.connected() {
			s.sendTo(c, errorMsg("That name is already taken."))
			return
		}

		existing.cancelGrace()
		existing.ConnID = c.id
		c.roomID = room.ID
		c.playerName = name
		room.conns[c] = struct{}{}

		log.Info().Str("room", room.ID).Str("player", name).Msg("player reconnected")

		s.sendTo(c, RoomJoinedMessage{
			Type:        "room:joined",
			Room:        viewRoom(room, name),
			Name:        name,
			Reconnected: true,
		})
		s.broadcastRoomExcept(room, c)
		return
	}

	if room.Started {
		s.sendTo(c, errorMsg("That game has already started."))
		return
	}
	if len(room.Players) >= maxPlayers {
		s.sendTo(c, errorMsg("That room is full."))
		return
	}

	player := newPlayer(name)
	player.ConnID = c.id
	room.addPlayer(player)

	c.roomID = room.ID
	c.playerName = name
	room.conns[c] = struct{}{}

	log.Info().Str("room", room.ID).Str("player", name).Msg("player joined")

	s.sendTo(c, RoomJoinedMessage{
		Type: "room:joined",
		Room: viewRoom(room, name),
		Name: name,
	})
	s.broadcastRoomExcept(room, c)
	s.broadcastRoomList()
}

func (s *Server) handleLeave(c *Client) {
	room := s.registry.get(c.roomID)
	if room == nil || c.playerName == "" {
		return
	}

	name := c.playerName
	c.roomID = ""
	c.playerName = ""
	delete(room.conns, c)

	s.removePlayer(room, name, false)
}

func (s *Server) handleDelete(c *Client) {
	room := s.registry.get(c.roomID)
	if room == nil {
		return
	}
	if !room.isHost(c.playerName) {
		s.sendTo(c, errorMsg("Only the host can delete the room."))
		return
	}

	log.Info().Str("room", room.ID).Msg("room deleted by host")
	s.registry.delete(room.ID, "The host closed the room.")
}

// removePlayer is the single leave path: explicit leaves, grace
// expiries, and host departures all funnel through here. An explicit
// host departure tears the room down; a host lost to a disconnect is
// failed over to the next player in join order.
func (s *Server) removePlayer(room *Room, name string, failover bool) {
	player := room.player(name)
	if player == nil {
		return
	}

	player.cancelGrace()
	wasHost := room.isHost(name)
	room.removePlayer(name)

	log.Info().Str("room", room.ID).Str("player", name).Msg("player removed")

	if len(room.Players) == 0 {
		s.registry.delete(room.ID, "Everyone left the room.")
		return
	}

	if wasHost {
		if !failover {
			s.registry.delete(room.ID, "The host left the room.")
			return
		}
		room.HostName = room.Players[0].Name
		log.Info().Str("room", room.ID).Str("player", room.HostName).Msg("host failover")
	}

	// A departure mid-choose can complete the lock-in set; mid-bid it
	// can complete the bid set. Re-run the phase checks before
	// broadcasting so observers never see a stuck phase.
	if room.Started && !room.GameOver {
		s.registry.touch(room)
		switch room.Phase {
		case phaseChoose:
			if s.checkChooseAdvance(room) {
				s.broadcastRoomList()
				return
			}
		case phaseBid:
			room.Participants = remove(room.Participants, name)
			// A bid phase needs two participants; settle on the spot
			// if the departure broke that.
			if len(room.Participants) < 2 {
				s.settle(room)
				s.broadcastRoomList()
				return
			}
			if s.checkBidSettle(room) {
				s.broadcastRoomList()
				return
			}
		}
	}

	s.broadcastRoom(room)
	s.broadcastRoomList()
}

// roomDeleted is the registry's deletion hook: notify members, unbind
// their connections, then refresh the lobby listing.
func (s *Server) roomDeleted(room *Room, reason string) {
	for c := range room.conns {
		s.sendTo(c, RoomDeletedMessage{Type: "room:deleted", Message: reason})
		c.roomID = ""
		c.playerName = ""
	}
	room.conns = make(map[*Client]struct{})

	s.broadcastRoomList()
}

// broadcastRoom sends each member their own filtered view.
func (s *Server) broadcastRoom(room *Room) {
	for c := range room.conns {
		s.sendTo(c, RoomUpdatedMessage{Type: "room:updated", Room: viewRoom(room, c.playerName)})
	}
}

func (s *Server) broadcastRoomExcept(room *Room, skip *Client) {
	for c := range room.conns {
		if c == skip {
			continue
		}
		s.sendTo(c, RoomUpdatedMessage{Type: "room:updated", Room: viewRoom(room, c.playerName)})
	}
}

// broadcastRoomList pushes the active listing to every connection.
func (s *Server) broadcastRoomList() {
	msg := RoomListMessage{Type: "rooms:list", Rooms: s.registry.listActive(roomListLimit)}
	for c := range s.conns {
		s.sendTo(c, msg)
	}
}

func remove(names []string, name string) []string {
	dst := names[:0]
	for _, n := range names {
		if n == name {
			continue
		}
		dst = append(dst, n)
	}
	return dst
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Client) readPump(s *Server) {
	defer func() {
		s.post(func() {
			s.disconnect(c)
		})
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		s.post(func() {
			s.handleMessage(c, msg)
		})
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades a connection and hands it to the event loop.
func serveWS(cfg *Config, s *Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := newClient(conn)

		s.post(func() {
			s.register(client)
		})

		go client.writePump()
		client.readPump(s)
	}
}
