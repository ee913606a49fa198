package main

// Messages coming from clients. A single struct keyed by Type, in the
// same shape the client sends: {"type": "game:confirmBid", "amount": 20000}.
type ClientMessage struct {
	Type            string `json:"type"`                      // "rooms:get", "room:create", "room:join", "room:leave", "room:delete", "game:start", "game:setItem", "game:lockPart", "game:confirmBid", "game:cancelBid", "game:end"
	HostName        string `json:"hostName,omitempty"`        // room:create
	BoardMode       bool   `json:"boardMode,omitempty"`       // room:create
	RoomID          string `json:"roomId,omitempty"`          // room:join
	PlayerName      string `json:"playerName,omitempty"`      // room:join
	Item            string `json:"item,omitempty"`            // game:setItem
	WillParticipate bool   `json:"willParticipate,omitempty"` // game:lockPart
	Amount          int64  `json:"amount,omitempty"`          // game:confirmBid
}

// RoomSummary is one entry of the public lobby listing.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	HostName    string `json:"hostName"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	BoardMode   bool   `json:"boardMode"`
	CreatedAt   int64  `json:"createdAt"` // unix millis
}

// RoomListMessage carries the active-room listing, pushed on every
// structural change and in reply to "rooms:get".
type RoomListMessage struct {
	Type  string        `json:"type"` // "rooms:list"
	Rooms []RoomSummary `json:"rooms"`
}

// RoomCreatedMessage confirms room creation to the host.
type RoomCreatedMessage struct {
	Type string    `json:"type"` // "room:created"
	Room *RoomView `json:"room"`
}

// RoomJoinedMessage confirms a join (or a reconnection) to the joiner.
type RoomJoinedMessage struct {
	Type        string    `json:"type"` // "room:joined"
	Room        *RoomView `json:"room"`
	Name        string    `json:"name"`
	Reconnected bool      `json:"reconnected"`
}

// RoomUpdatedMessage carries a per-recipient filtered view after any
// room mutation.
type RoomUpdatedMessage struct {
	Type string    `json:"type"` // "room:updated"
	Room *RoomView `json:"room"`
}

// RoomDeletedMessage tells members their room is gone.
type RoomDeletedMessage struct {
	Type    string `json:"type"` // "room:deleted"
	Message string `json:"message"`
}

// GameStartedMessage announces the transition out of the lobby.
type GameStartedMessage struct {
	Type string    `json:"type"` // "game:started"
	Room *RoomView `json:"room"`
}

// RoundResultMessage is the personalized end-of-round notice.
type RoundResultMessage struct {
	Type           string    `json:"type"` // "round:result"
	Round          int       `json:"round"`
	Item           string    `json:"item"`
	Winners        []string  `json:"winners"`
	IsWinner       bool      `json:"isWinner"`
	WasParticipant bool      `json:"wasParticipant"`
	Room           *RoomView `json:"room"`
}

// GameEndedMessage is terminal; Room is the unfiltered final view.
type GameEndedMessage struct {
	Type    string    `json:"type"` // "game:ended"
	Message string    `json:"message"`
	Winners []string  `json:"winners"`
	Room    *RoomView `json:"room"`
}

// ErrorMessage reports a validation failure to the offending
// connection only.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func errorMsg(text string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: text}
}
