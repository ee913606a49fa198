package main

import (
	"strings"

	"github.com/jonboulle/clockwork"
)

const (
	startingBalance int64 = 1_000_000
	sitOutBonus     int64 = 50_000
	bidStep         int64 = 10_000

	maxNameLength = 10
	maxPlayers    = 8
	minPlayers    = 3
)

// Win thresholds: total items, copies of one token, distinct tokens.
const (
	winAnyCount  = 5
	winSameCount = 3
	winDiffCount = 4
)

// Player holds the data we store server-side. Identity is the name,
// unique within a room; the connection id is rebound on reconnect.
type Player struct {
	Name    string
	ConnID  string
	Balance int64
	Hold    int64
	Items   []string

	// Per-round flags, reset on every choose phase.
	WillParticipate *bool
	ReadyPart       bool
	ReadyBid        bool
	Bid             int64

	// Pending removal after a disconnect; cancelled on reconnect.
	graceTimer clockwork.Timer
}

func newPlayer(name string) *Player {
	return &Player{
		Name:    name,
		Balance: startingBalance,
		Items:   []string{},
	}
}

// resetRound clears the per-round flags. Hold is deliberately left
// alone: settlement already zeroed it, and resetting it here would
// mask a conservation bug instead of surfacing one.
func (p *Player) resetRound() {
	p.WillParticipate = nil
	p.ReadyPart = false
	p.ReadyBid = false
	p.Bid = 0
}

func (p *Player) connected() bool {
	return p.ConnID != ""
}

func (p *Player) cancelGrace() {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
}

// normalizeName trims and length-caps a display name. The cap counts
// runes, not bytes, so multibyte names survive a JSON round trip and
// still match on reconnect. An empty result means the name is
// unusable.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}

// checkWin reports whether an inventory satisfies any win condition:
// five items total, three copies of one token, or four distinct
// tokens. Pure, and monotonic in the inventory.
func checkWin(items []string) bool {
	if len(items) >= winAnyCount {
		return true
	}

	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[item]++
		if counts[item] >= winSameCount {
			return true
		}
	}

	return len(counts) >= winDiffCount
}
