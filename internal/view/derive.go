package view

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
)

// ErrNoOwner means no player in the snapshot is flagged as the game owner.
var ErrNoOwner = errors.New("snapshot has no game owner")

// ErrUnknownState means the snapshot's state is none of the four known phases.
var ErrUnknownState = errors.New("invalid game state")

// ViewState is what the local viewer should see and may do next. It is
// recomputed from scratch on every snapshot.
type ViewState struct {
	CurrentPlayer   *types.Player
	Screen          Screen
	IsJudge         bool
	IsOwner         bool
	PlayerSubmitted bool
}

// State returns the screen name.
func (v ViewState) State() string {
	if v.Screen == nil {
		return ""
	}
	return v.Screen.Name()
}

func (v ViewState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CurrentPlayer   *types.Player `json:"currentPlayer"`
		State           string        `json:"state"`
		IsJudge         bool          `json:"isJudge"`
		IsOwner         bool          `json:"isOwner"`
		PlayerSubmitted bool          `json:"playerSubmitted"`
	}{v.CurrentPlayer, v.State(), v.IsJudge, v.IsOwner, v.PlayerSubmitted})
}

// Derive maps a snapshot and the local identity (nil when anonymous) to a
// ViewState. Invariant violations in the snapshot return a zero ViewState and
// an error wrapping ErrNoOwner or ErrUnknownState; callers must not guess a
// screen in that case.
func Derive(g types.GameSnapshot, id *identity.Identity) (ViewState, error) {
	var vs ViewState

	if id != nil {
		idx := g.PlayerIndex(id.UserID)
		if idx >= 0 {
			p := g.Players[idx]
			vs.CurrentPlayer = &p
		}

		if judge, ok := g.Judge(); ok {
			vs.IsJudge = judge.ID == id.UserID
		}

		owner, ok := owner(g)
		if !ok {
			return ViewState{}, fmt.Errorf("game %s: %w", g.ID, ErrNoOwner)
		}
		vs.IsOwner = owner.ID == id.UserID

		if g.State == types.StatePlaying && idx >= 0 {
			_, vs.PlayerSubmitted = g.SubmissionFor(idx)
		}
	}

	screen, err := screenFor(g.State, vs)
	if err != nil {
		return ViewState{}, fmt.Errorf("game %s: %w", g.ID, err)
	}
	vs.Screen = screen
	return vs, nil
}

func screenFor(state types.GameState, vs ViewState) (Screen, error) {
	switch state {
	case types.StateNotStarted:
		if vs.IsOwner {
			return OwnerWaiting{}, nil
		} else if vs.CurrentPlayer != nil {
			return NewPlayerWaiting{}, nil
		}
		return NewPlayerForm{}, nil

	case types.StatePlaying:
		if vs.IsJudge {
			return JudgeWaiting{}, nil
		} else if vs.PlayerSubmitted {
			return PlayerSubmitted{}, nil
		}
		return PlayerSelect{}, nil

	case types.StateJudging:
		if vs.IsJudge {
			return JudgeSelect{}, nil
		}
		return PlayerWaiting{}, nil

	case types.StateReveal:
		return Reveal{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
}

func owner(g types.GameSnapshot) (types.Player, bool) {
	for _, p := range g.Players {
		if p.IsGameOwner {
			return p, true
		}
	}
	return types.Player{}, false
}
