package action

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cory-johannsen/drawguess/internal/game/state"
	"github.com/cory-johannsen/drawguess/internal/protocol"
)

var (
	// ErrMissingParameter is returned when a known verb arrived without a parameter.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrMalformedParameter is returned when a parameter has the wrong shape.
	ErrMalformedParameter = errors.New("malformed parameter")
)

func requireParam(req protocol.Request) error {
	if !req.HasParam {
		return fmt.Errorf("%s: %w", req.Verb, ErrMissingParameter)
	}
	return nil
}

// NewPoint relays a drawing point to every player unchanged.
func NewPoint(deps Deps, req protocol.Request) error {
	if err := requireParam(req); err != nil {
		return err
	}
	deps.Publisher.Publish(protocol.TopicNewPoint, req.Param)
	return nil
}

// NewWinner relays a winner report, but only while a round is being played.
func NewWinner(deps Deps, req protocol.Request) error {
	if err := requireParam(req); err != nil {
		return err
	}
	if !deps.State.InProgress() {
		deps.Logger.Debug("winner reported outside a round", zap.String("payload", req.Param))
		return nil
	}
	deps.Publisher.Publish(protocol.TopicNewWinner, req.Param)
	return nil
}

// NewPlayer registers a player from "id%ip%name" and broadcasts the full roster in seat order.
// Joins past capacity and repeated ids are dropped without a broadcast.
func NewPlayer(deps Deps, req protocol.Request) error {
	if err := requireParam(req); err != nil {
		return err
	}
	f, ok := protocol.SplitFields(req.Param, 3)
	if !ok {
		return fmt.Errorf("%s %q: want id%%ip%%name: %w", req.Verb, req.Param, ErrMalformedParameter)
	}
	id, ip, name := f[0], f[1], f[2]
	if id == "" {
		return fmt.Errorf("%s %q: empty id: %w", req.Verb, req.Param, ErrMalformedParameter)
	}

	seat, err := deps.State.AddPlayer(ip, name, id)
	switch {
	case errors.Is(err, state.ErrRoomFull), errors.Is(err, state.ErrPlayerExists):
		deps.Logger.Debug("join dropped", zap.String("player", id), zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("adding player %q: %w", id, err)
	}
	deps.Logger.Info("player joined",
		zap.String("player", id),
		zap.String("name", name),
		zap.Int("seat", seat),
	)

	deps.Publisher.Publish(protocol.TopicNewPlayerList, Roster(deps.State))
	return nil
}

// Roster renders every player of st as a ServerNewPlayerList payload.
func Roster(st *state.GameState) string {
	players := st.Players()
	entries := make([]protocol.RosterEntry, len(players))
	for i, p := range players {
		entries[i] = protocol.RosterEntry{ID: p.ID, IP: p.IP, Name: p.Name, Seat: p.Seat}
	}
	return protocol.EncodeRoster(entries)
}

// PlayerReady applies a "id%flag" ready vote and starts a round once every player is ready.
// Votes arriving during a round, and votes for unknown players, change nothing.
func PlayerReady(deps Deps, req protocol.Request) error {
	if err := requireParam(req); err != nil {
		return err
	}
	if deps.State.InProgress() {
		deps.Logger.Debug("ready vote ignored during round", zap.String("payload", req.Param))
		return nil
	}

	f, ok := protocol.SplitFields(req.Param, 2)
	if !ok {
		return fmt.Errorf("%s %q: want id%%flag: %w", req.Verb, req.Param, ErrMalformedParameter)
	}
	flag, err := strconv.Atoi(f[1])
	if err != nil {
		return fmt.Errorf("%s %q: ready flag: %w", req.Verb, req.Param, errors.Join(ErrMalformedParameter, err))
	}

	id := f[0]
	if !deps.State.SetReady(id, flag != 0) {
		deps.Logger.Debug("ready vote for unknown player", zap.String("player", id))
		return nil
	}
	deps.Publisher.Publish(protocol.TopicPlayerReady, req.Param)

	drawer, started := deps.State.StartRound(deps.Word)
	if !started {
		return nil
	}
	deps.Logger.Info("round started",
		zap.String("drawer", drawer),
		zap.Int("players", deps.State.Count()),
	)
	deps.Publisher.Publish(protocol.TopicNewGame, protocol.JoinFields(drawer, deps.Word))
	return nil
}
