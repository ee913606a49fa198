package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestJoinValidation(t *testing.T) {
	s, _ := newTestServer()
	room, _ := setupRoom(t, s, "Alice", "Bob")

	testCases := []struct {
		name       string
		msg        ClientMessage
		wantJoined bool
	}{
		{
			name:       "unknown room",
			msg:        ClientMessage{Type: "room:join", RoomID: "nowhere", PlayerName: "Dana"},
			wantJoined: false,
		},
		{
			name:       "blank name",
			msg:        ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "   "},
			wantJoined: false,
		},
		{
			name:       "name held by a connected player",
			msg:        ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "Bob"},
			wantJoined: false,
		},
		{
			name:       "fresh name",
			msg:        ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "Dana"},
			wantJoined: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient()
			s.register(c)
			drain(c)
			s.handleMessage(c, tc.msg)

			joined := c.roomID != ""
			if joined != tc.wantJoined {
				t.Fatalf("joined = %v, want %v", joined, tc.wantJoined)
			}
			if _, gotErr := lastError(drain(c)); gotErr == tc.wantJoined {
				t.Errorf("error message presence = %v, want %v", gotErr, !tc.wantJoined)
			}
		})
	}
}

func TestJoinRejectedWhenFullOrStarted(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s,
		"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8")

	c := testClient()
	s.register(c)
	s.handleMessage(c, ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "p9"})
	if c.roomID != "" {
		t.Fatal("ninth player joined a full room")
	}

	s.removePlayer(room, "p8", false)
	startGame(t, s, room, clients)

	s.handleMessage(c, ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "p9"})
	if c.roomID != "" {
		t.Fatal("new player joined a started game")
	}
}

func TestNameNormalization(t *testing.T) {
	s, _ := newTestServer()

	c := testClient()
	s.register(c)
	s.handleMessage(c, ClientMessage{Type: "room:create", HostName: "  Bartholomew Cubbins  "})

	room := s.registry.get(c.roomID)
	if room == nil {
		t.Fatal("room was not created")
	}
	if got := room.HostName; got != "Bartholome" {
		t.Errorf("host name = %q, want trimmed and capped %q", got, "Bartholome")
	}
	if !strings.HasPrefix(room.ID, "Bartholome's room") {
		t.Errorf("room id = %q, want it derived from the capped name", room.ID)
	}
}

func TestNameNormalizationMultibyte(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"hangul under cap", "안녕하세요", "안녕하세요"},
		{"hangul over cap", "안녕하세요반갑습니다였", "안녕하세요반갑습니다"},
		{"kanji over cap", "東京都千代田区丸の内一丁目", "東京都千代田区丸の内"},
		{"emoji over cap", "🎉🎉🎉🎉🎉🎉🎉🎉🎉🎉🎉", "🎉🎉🎉🎉🎉🎉🎉🎉🎉🎉"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := normalizeName(testCase.in)
			if got != testCase.want {
				t.Errorf("normalizeName(%q) = %q, want %q", testCase.in, got, testCase.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("normalizeName(%q) = %q is not valid UTF-8", testCase.in, got)
			}
			// The capped name is what clients see and resubmit on
			// reconnect, so normalizing it again must be a no-op.
			if again := normalizeName(got); again != got {
				t.Errorf("normalizeName is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestReconnectWithMultibyteName(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s, "안녕하세요반갑습니다였", "Bob", "Cara")
	host := room.HostName
	if host != "안녕하세요반갑습니다" {
		t.Fatalf("host name = %q, want rune-capped %q", host, "안녕하세요반갑습니다")
	}

	s.handleMessage(clients["안녕하세요반갑습니다였"], ClientMessage{Type: "game:start"})
	if !room.Started {
		t.Fatal("game did not start")
	}

	before := room.player(host)
	if before == nil {
		t.Fatalf("no player stored under the capped name %q", host)
	}
	s.disconnect(clients["안녕하세요반갑습니다였"])

	// The client resubmits the name it was shown, the capped form.
	c2 := testClient()
	s.register(c2)
	drain(c2)
	s.handleMessage(c2, ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: host})

	if msg, ok := lastError(drain(c2)); ok {
		t.Fatalf("reconnect rejected: %q", msg.Message)
	}
	after := room.player(host)
	if after != before {
		t.Error("reconnect created a new player instead of rebinding")
	}
	if !after.connected() {
		t.Error("player not marked connected after reconnect")
	}
}

func TestReconnectPreservesState(t *testing.T) {
	s, clock := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob", "Cara")
	startGame(t, s, room, clients)

	lockAll(t, s, room, clients, map[string]bool{"Alice": true, "Bob": true, "Cara": true})
	s.handleMessage(clients["Cara"], ClientMessage{Type: "game:confirmBid", Amount: 20_000})

	before := room.player("Cara")
	s.disconnect(clients["Cara"])

	if before.connected() {
		t.Fatal("player still marked connected after disconnect")
	}
	if room.player("Cara") == nil {
		t.Fatal("player dropped immediately instead of entering grace")
	}

	// Reconnect within the grace window under the same name.
	c2 := testClient()
	s.register(c2)
	s.handleMessage(c2, ClientMessage{Type: "room:join", RoomID: room.ID, PlayerName: "Cara"})

	after := room.player("Cara")
	if after != before {
		t.Fatal("reconnection produced a new player instead of rebinding")
	}
	if after.ConnID != c2.id {
		t.Error("connection id was not rebound")
	}
	if after.Hold != 20_000 || !after.ReadyBid {
		t.Errorf("mid-bid state not preserved: hold=%d readyBid=%v", after.Hold, after.ReadyBid)
	}

	var joined bool
	for _, msg := range drain(c2) {
		if j, ok := msg.(RoomJoinedMessage); ok && j.Reconnected {
			joined = true
		}
	}
	if !joined {
		t.Error("no room:joined with the reconnected flag")
	}

	// The pending removal must have been cancelled.
	clock.Advance(s.cfg.reconnectGrace)
	select {
	case ev := <-s.events:
		ev()
	default:
	}
	if room.player("Cara") == nil {
		t.Error("reconnected player was still removed by the stale grace timer")
	}
}

func TestGraceExpiryRemovesPlayer(t *testing.T) {
	s, clock := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob", "Cara")
	startGame(t, s, room, clients)

	s.disconnect(clients["Bob"])
	clock.Advance(s.cfg.reconnectGrace)
	runNextEvent(t, s)

	if room.player("Bob") != nil {
		t.Fatal("disconnected player survived the grace window")
	}
	if s.registry.get(room.ID) == nil {
		t.Fatal("room was deleted though players remain")
	}
	if got := len(room.Players); got != 2 {
		t.Errorf("players = %d, want 2", got)
	}
}

func TestHostFailoverOnDisconnect(t *testing.T) {
	s, clock := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob", "Cara")
	startGame(t, s, room, clients)

	s.disconnect(clients["Alice"])
	clock.Advance(s.cfg.reconnectGrace)
	runNextEvent(t, s)

	if s.registry.get(room.ID) == nil {
		t.Fatal("room deleted instead of failing the host over")
	}
	if room.HostName != "Bob" {
		t.Errorf("host = %q, want next player in join order %q", room.HostName, "Bob")
	}
	if room.player("Alice") != nil {
		t.Error("old host still seated")
	}
}

func TestExplicitHostLeaveDeletesRoom(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob", "Cara")

	drain(clients["Bob"])
	s.handleMessage(clients["Alice"], ClientMessage{Type: "room:leave"})

	if s.registry.get(room.ID) != nil {
		t.Fatal("room survived the host leaving")
	}

	var notified bool
	for _, msg := range drain(clients["Bob"]) {
		if _, ok := msg.(RoomDeletedMessage); ok {
			notified = true
		}
	}
	if !notified {
		t.Error("remaining members were not notified")
	}
	if clients["Bob"].roomID != "" {
		t.Error("remaining member still bound to the dead room")
	}
}

func TestLastPlayerLeavingDeletesRoom(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob")

	s.handleMessage(clients["Bob"], ClientMessage{Type: "room:leave"})
	if s.registry.get(room.ID) == nil {
		t.Fatal("room deleted while the host remained")
	}

	s.handleMessage(clients["Alice"], ClientMessage{Type: "room:leave"})
	if s.registry.get(room.ID) != nil {
		t.Error("empty room was not deleted")
	}
}

func TestRoomDeleteIsHostOnly(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob")

	s.handleMessage(clients["Bob"], ClientMessage{Type: "room:delete"})
	if s.registry.get(room.ID) == nil {
		t.Fatal("non-host deleted the room")
	}

	s.handleMessage(clients["Alice"], ClientMessage{Type: "room:delete"})
	if s.registry.get(room.ID) != nil {
		t.Error("host could not delete the room")
	}
}

func TestDepartureCompletesPhase(t *testing.T) {
	s, _ := newTestServer()
	room, clients := setupRoom(t, s, "Alice", "Bob", "Cara")
	startGame(t, s, room, clients)

	// Two players lock in; the third leaving must not leave the
	// choose phase waiting on a ghost.
	s.handleMessage(clients["Alice"], ClientMessage{Type: "game:lockPart", WillParticipate: true})
	s.handleMessage(clients["Bob"], ClientMessage{Type: "game:lockPart", WillParticipate: true})

	s.handleMessage(clients["Cara"], ClientMessage{Type: "room:leave"})

	if room.Phase != phaseBid {
		t.Fatalf("phase = %q, want %q after the stalling player left", room.Phase, phaseBid)
	}

	// Mid-bid, a participant leaving below two settles immediately.
	s.handleMessage(clients["Bob"], ClientMessage{Type: "room:leave"})
	if room.Phase != phaseChoose {
		t.Errorf("phase = %q, want a settled round", room.Phase)
	}
	if room.Round != 1 {
		t.Errorf("round = %d, want 1", room.Round)
	}
	if got := room.LastWinners; len(got) != 1 || got[0] != "Alice" {
		t.Errorf("lastWinners = %v, want [Alice]", got)
	}
}

func TestRoomsGetRepliesToSender(t *testing.T) {
	s, _ := newTestServer()
	setupRoom(t, s, "Alice", "Bob")

	c := testClient()
	s.register(c)
	drain(c)

	s.handleMessage(c, ClientMessage{Type: "rooms:get"})

	msgs := drain(c)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	list, ok := msgs[0].(RoomListMessage)
	if !ok {
		t.Fatalf("got %T, want RoomListMessage", msgs[0])
	}
	if len(list.Rooms) != 1 {
		t.Errorf("rooms = %d, want 1", len(list.Rooms))
	}
	if list.Rooms[0].PlayerCount != 2 || list.Rooms[0].MaxPlayers != maxPlayers {
		t.Errorf("summary = %+v, want 2/%d players", list.Rooms[0], maxPlayers)
	}
}
