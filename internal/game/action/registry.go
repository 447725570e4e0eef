// Package action maps request verbs to the handlers that apply them to a room.
package action

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/drawguess/internal/broadcast"
	"github.com/cory-johannsen/drawguess/internal/game/state"
	"github.com/cory-johannsen/drawguess/internal/protocol"
)

// Deps is what a handler may touch while it runs.
type Deps struct {
	State     *state.GameState
	Publisher broadcast.Publisher
	// Word is the secret word used when a round starts.
	Word   string
	Logger *zap.Logger
}

// Handler applies one parsed request to the room and publishes the resulting broadcasts.
type Handler interface {
	Handle(deps Deps, req protocol.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(deps Deps, req protocol.Request) error

// Handle calls f.
func (f HandlerFunc) Handle(deps Deps, req protocol.Request) error { return f(deps, req) }

// Action binds a verb to its handler.
type Action struct {
	Verb    string
	Handler Handler
}

// Registry maps verbs to handlers. It is immutable after construction and safe for concurrent reads.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates a Registry populated with the given actions.
//
// Precondition: No two actions may share a verb; verbs and handlers must be non-empty.
// Postcondition: Returns a Registry or an error on collisions.
func NewRegistry(actions []Action) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(actions))}
	for _, a := range actions {
		if a.Verb == "" {
			return nil, fmt.Errorf("empty verb")
		}
		if a.Handler == nil {
			return nil, fmt.Errorf("verb %q has no handler", a.Verb)
		}
		if _, exists := r.handlers[a.Verb]; exists {
			return nil, fmt.Errorf("duplicate verb: %q", a.Verb)
		}
		r.handlers[a.Verb] = a.Handler
	}
	return r, nil
}

// BuiltinActions returns the four verbs players may send.
func BuiltinActions() []Action {
	return []Action{
		{Verb: protocol.VerbNewPoint, Handler: HandlerFunc(NewPoint)},
		{Verb: protocol.VerbNewWinner, Handler: HandlerFunc(NewWinner)},
		{Verb: protocol.VerbNewPlayer, Handler: HandlerFunc(NewPlayer)},
		{Verb: protocol.VerbPlayerReady, Handler: HandlerFunc(PlayerReady)},
	}
}

// DefaultRegistry creates a Registry with all built-in actions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinActions())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up the handler for verb.
//
// Postcondition: Returns (handler, true) if found, or (nil, false).
func (r *Registry) Resolve(verb string) (Handler, bool) {
	h, ok := r.handlers[verb]
	return h, ok
}

// Verbs returns all registered verbs sorted alphabetically.
func (r *Registry) Verbs() []string {
	out := make([]string, 0, len(r.handlers))
	for v := range r.handlers {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
