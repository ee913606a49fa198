package main

import (
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const roomListLimit = 20

// Registry is the process-wide room store. It owns room ids and the
// lifecycle timers; everything else about a room is the state
// machine's business. All methods must be called from the server
// event loop, so no lock is held.
type Registry struct {
	cfg   *Config
	clock clockwork.Clock
	rooms map[string]*Room

	// post hands a timer callback to the event loop, so a firing
	// timer is serialized with every other mutation.
	post func(func())

	// onDelete notifies a room's connections before the entry goes.
	onDelete func(room *Room, reason string)
}

func newRegistry(cfg *Config, clock clockwork.Clock, post func(func())) *Registry {
	return &Registry{
		cfg:   cfg,
		clock: clock,
		rooms: make(map[string]*Room),
		post:  post,
	}
}

// newRoomID derives a human-readable id from the host name, counting
// up through collisions and falling back to a timestamp suffix once
// the counter is exhausted.
func (reg *Registry) newRoomID(hostName string) string {
	base := fmt.Sprintf("%s's room", hostName)

	if _, taken := reg.rooms[base]; !taken {
		return base
	}

	for n := 2; n <= 99; n++ {
		candidate := fmt.Sprintf("%s %d", base, n)
		if _, taken := reg.rooms[candidate]; !taken {
			return candidate
		}
	}

	return fmt.Sprintf("%s %d", base, reg.clock.Now().UnixMilli())
}

// create registers a new room under a fresh id and arms the pre-start
// timer: a room that never starts gets reaped.
func (reg *Registry) create(hostName string, boardMode bool) *Room {
	room := &Room{
		ID:        reg.newRoomID(hostName),
		HostName:  hostName,
		BoardMode: boardMode,
		CreatedAt: reg.clock.Now(),
		Phase:     phaseChoose,
		conns:     make(map[*Client]struct{}),
	}

	reg.rooms[room.ID] = room

	room.lobbyTimer = reg.clock.AfterFunc(reg.cfg.lobbyTimeout, func() {
		reg.post(func() {
			if r := reg.get(room.ID); r != nil && !r.Started {
				log.Info().Str("room", r.ID).Msg("lobby timeout, removing room")
				reg.delete(r.ID, "The room timed out before the game started.")
			}
		})
	})

	return room
}

func (reg *Registry) get(roomID string) *Room {
	return reg.rooms[roomID]
}

// delete removes a room, idempotently: a timer firing after another
// path already removed the room is a no-op.
func (reg *Registry) delete(roomID, reason string) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return
	}

	room.stopTimers()
	delete(reg.rooms, roomID)

	if reg.onDelete != nil {
		reg.onDelete(room, reason)
	}
}

// markStarted swaps the pre-start timer for the renewable inactivity
// timer.
func (reg *Registry) markStarted(room *Room) {
	if room.lobbyTimer != nil {
		room.lobbyTimer.Stop()
		room.lobbyTimer = nil
	}
	reg.touch(room)
}

// touch renews the inactivity timer. Called for every mutating player
// action on a started room, replacing any armed timer so a stale fire
// cannot reap a live room.
func (reg *Registry) touch(room *Room) {
	if !room.Started || room.GameOver {
		return
	}

	if room.idleTimer != nil {
		room.idleTimer.Stop()
	}

	room.idleTimer = reg.clock.AfterFunc(reg.cfg.idleTimeout, func() {
		reg.post(func() {
			if r := reg.get(room.ID); r != nil && !r.GameOver {
				log.Info().Str("room", r.ID).Msg("idle timeout, removing room")
				reg.delete(r.ID, "The room was closed for inactivity.")
			}
		})
	})
}

// scheduleEnd arms the post-game grace deletion, leaving clients a
// window to render the final state.
func (reg *Registry) scheduleEnd(room *Room) {
	if room.idleTimer != nil {
		room.idleTimer.Stop()
		room.idleTimer = nil
	}
	if room.endTimer != nil {
		return
	}

	room.endTimer = reg.clock.AfterFunc(reg.cfg.endGrace, func() {
		reg.post(func() {
			reg.delete(room.ID, "The game is over.")
		})
	})
}

// listActive returns the newest-first public summaries of rooms still
// accepting players. Recomputed on demand; there is no separately
// maintained listing.
func (reg *Registry) listActive(limit int) []RoomSummary {
	active := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		if !room.Started && !room.GameOver {
			active = append(active, room)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	if len(active) > limit {
		active = active[:limit]
	}

	summaries := make([]RoomSummary, 0, len(active))
	for _, room := range active {
		summaries = append(summaries, RoomSummary{
			RoomID:      room.ID,
			HostName:    room.HostName,
			PlayerCount: len(room.Players),
			MaxPlayers:  maxPlayers,
			BoardMode:   room.BoardMode,
			CreatedAt:   room.CreatedAt.UnixMilli(),
		})
	}

	return summaries
}
