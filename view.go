package main

// PlayerView is the per-recipient projection of one player. Balance,
// hold, bid, and the item list are nil for everyone but the viewer;
// other players get only a count.
type PlayerView struct {
	Name      string   `json:"name"`
	Connected bool     `json:"connected"`
	IsHost    bool     `json:"isHost"`
	Balance   *int64   `json:"balance"`
	Hold      *int64   `json:"hold"`
	Bid       *int64   `json:"bid"`
	Items     []string `json:"items"`
	ItemCount int      `json:"itemCount"`
	ReadyPart bool     `json:"readyPart"`
	ReadyBid  bool     `json:"readyBid"`
}

// RoomView is the wire projection of a room. Structural fields are
// shared verbatim; player privacy is handled per PlayerView.
type RoomView struct {
	RoomID       string       `json:"roomId"`
	HostName     string       `json:"hostName"`
	BoardMode    bool         `json:"boardMode"`
	Started      bool         `json:"started"`
	GameOver     bool         `json:"gameOver"`
	Round        int          `json:"round"`
	Phase        string       `json:"phase"`
	CurrentItem  string       `json:"currentItem"`
	Participants []string     `json:"participants"`
	LastWinners  []string     `json:"lastWinners"`
	LastItem     string       `json:"lastItem"`
	RoundLogs    []RoundLog   `json:"roundLogs"`
	FinalWinners []string     `json:"finalWinners"`
	Players      []PlayerView `json:"players"`
}

// viewRoom builds the filtered projection of a room for one viewer.
// Pure: it never mutates the room, and two calls with the same
// arguments agree.
func viewRoom(room *Room, viewerName string) *RoomView {
	return projectRoom(room, func(p *Player) bool {
		return p.Name == viewerName
	})
}

// viewFinalRoom reveals every player's holdings. Only valid once the
// game is over; concealment no longer serves a purpose.
func viewFinalRoom(room *Room) *RoomView {
	return projectRoom(room, func(*Player) bool {
		return true
	})
}

func projectRoom(room *Room, reveal func(*Player) bool) *RoomView {
	view := &RoomView{
		RoomID:       room.ID,
		HostName:     room.HostName,
		BoardMode:    room.BoardMode,
		Started:      room.Started,
		GameOver:     room.GameOver,
		Round:        room.Round,
		Phase:        room.Phase,
		CurrentItem:  room.CurrentItem,
		Participants: append([]string{}, room.Participants...),
		LastWinners:  append([]string{}, room.LastWinners...),
		LastItem:     room.LastItem,
		RoundLogs:    append([]RoundLog{}, room.RoundLogs...),
		FinalWinners: append([]string{}, room.FinalWinners...),
		Players:      make([]PlayerView, 0, len(room.Players)),
	}

	for _, p := range room.Players {
		pv := PlayerView{
			Name:      p.Name,
			Connected: p.connected(),
			IsHost:    room.isHost(p.Name),
			ItemCount: len(p.Items),
			ReadyPart: p.ReadyPart,
			ReadyBid:  p.ReadyBid,
		}

		if reveal(p) {
			balance, hold, bid := p.Balance, p.Hold, p.Bid
			pv.Balance = &balance
			pv.Hold = &hold
			pv.Bid = &bid
			pv.Items = append([]string{}, p.Items...)
		}

		view.Players = append(view.Players, pv)
	}

	return view
}
