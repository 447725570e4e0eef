// Package state holds the in-memory registry of players and the round phase of a room.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cory-johannsen/drawguess/internal/game/random"
)

// NoSeat is returned by AddPlayer when the join was dropped.
const NoSeat = -1

var (
	// ErrRoomFull is returned when a join arrives after the room passed capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrPlayerExists is returned when a join reuses a registered id.
	ErrPlayerExists = errors.New("player already joined")
)

// Player is a registered participant.
type Player struct {
	ID   string
	IP   string
	Name string
	// Seat is the join-order index; it never changes once assigned.
	Seat  int
	Score int
	Ready bool
}

// GameState tracks all players of a room and whether a round is being played.
// Every method is atomic and safe for concurrent use; sequences of calls are not.
type GameState struct {
	mu         sync.RWMutex
	players    map[string]*Player
	capacity   int
	inProgress bool
	drawer     string
	word       string
	src        random.Source
}

// New creates an empty GameState.
//
// Precondition: capacity >= 1; src must be non-nil.
// Postcondition: Returns a GameState with no players and no round in progress.
func New(capacity int, src random.Source) *GameState {
	return &GameState{
		players:  make(map[string]*Player),
		capacity: capacity,
		src:      src,
	}
}

// AddPlayer registers a player at the next seat.
// A join is accepted while the player count does not exceed capacity.
//
// Postcondition: Returns the assigned seat; returns (NoSeat, ErrRoomFull) past capacity and
// (existing seat, ErrPlayerExists) when id is already registered. Neither error mutates state.
func (g *GameState) AddPlayer(ip, name, id string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok {
		return p.Seat, fmt.Errorf("player %q: %w", id, ErrPlayerExists)
	}
	if len(g.players) > g.capacity {
		return NoSeat, fmt.Errorf("player %q with %d/%d seated: %w", id, len(g.players), g.capacity, ErrRoomFull)
	}

	seat := len(g.players)
	g.players[id] = &Player{ID: id, IP: ip, Name: name, Seat: seat}
	return seat, nil
}

// SetReady sets the ready flag of a player.
//
// Postcondition: Returns false and changes nothing if id is unknown.
func (g *GameState) SetReady(id string, ready bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[id]
	if !ok {
		return false
	}
	p.Ready = ready
	return true
}

// AllReady reports whether at least one player is registered and every player is ready.
func (g *GameState) AllReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allReadyLocked()
}

func (g *GameState) allReadyLocked() bool {
	if len(g.players) == 0 {
		return false
	}
	for _, p := range g.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// PickRandomPlayer returns a uniformly chosen registered id.
//
// Postcondition: Returns ("", false) when no player is registered.
func (g *GameState) PickRandomPlayer() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pickLocked()
}

func (g *GameState) pickLocked() (string, bool) {
	if len(g.players) == 0 {
		return "", false
	}
	ordered := g.sortedLocked()
	return ordered[g.src.Intn(len(ordered))].ID, true
}

// StartRound begins a round with word when no round is in progress and every player is ready.
// The check, drawer pick, and phase change happen as one step, so concurrent callers start at
// most one round.
//
// Postcondition: Returns (drawer id, true) when this call started the round, ("", false) otherwise.
func (g *GameState) StartRound(word string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inProgress || !g.allReadyLocked() {
		return "", false
	}
	drawer, ok := g.pickLocked()
	if !ok {
		return "", false
	}
	g.inProgress = true
	g.drawer = drawer
	g.word = word
	return drawer, true
}

// Players returns copies of all players ordered by seat.
func (g *GameState) Players() []Player {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sorted := g.sortedLocked()
	out := make([]Player, len(sorted))
	for i, p := range sorted {
		out[i] = *p
	}
	return out
}

func (g *GameState) sortedLocked() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// Player returns a copy of the player with the given id.
func (g *GameState) Player(id string) (Player, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Count returns the number of registered players.
func (g *GameState) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// Capacity returns the configured room capacity.
func (g *GameState) Capacity() int {
	return g.capacity
}

// InProgress reports whether a round is being played.
func (g *GameState) InProgress() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inProgress
}

// Drawer returns the drawer of the current round.
//
// Postcondition: Returns ("", false) when no round is in progress.
func (g *GameState) Drawer() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.inProgress {
		return "", false
	}
	return g.drawer, true
}

// Word returns the secret word of the current round.
//
// Postcondition: Returns ("", false) when no round is in progress.
func (g *GameState) Word() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.inProgress {
		return "", false
	}
	return g.word, true
}
