package view

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func as(userID string) *identity.Identity {
	return &identity.Identity{GameID: "g1", UserID: userID}
}

func players(ids ...string) []types.Player {
	out := make([]types.Player, len(ids))
	for i, id := range ids {
		out[i] = types.Player{ID: id, Name: "Player " + id, Short: id, IsGameOwner: i == 0}
	}
	return out
}

func TestDerive_DecisionTable(t *testing.T) {
	cases := []struct {
		name      string
		snap      types.GameSnapshot
		viewer    *identity.Identity
		want      string
		judge     bool
		owner     bool
		submitted bool
	}{
		{
			name:   "owner waits for players",
			snap:   types.GameSnapshot{State: types.StateNotStarted, Players: players("A", "B"), CurrentJudgeIndex: -1},
			viewer: as("A"),
			want:   "OwnerWaiting",
			owner:  true,
		},
		{
			name:   "joined player waits",
			snap:   types.GameSnapshot{State: types.StateNotStarted, Players: players("A", "B"), CurrentJudgeIndex: -1},
			viewer: as("B"),
			want:   "NewPlayerWaiting",
		},
		{
			name:   "anonymous viewer gets the join form",
			snap:   types.GameSnapshot{State: types.StateNotStarted, Players: players("A"), CurrentJudgeIndex: -1},
			viewer: nil,
			want:   "NewPlayerForm",
		},
		{
			name:   "stale identity gets the join form",
			snap:   types.GameSnapshot{State: types.StateNotStarted, Players: players("A"), CurrentJudgeIndex: -1},
			viewer: as("Z"),
			want:   "NewPlayerForm",
		},
		{
			name:   "judge waits while others play",
			snap:   types.GameSnapshot{State: types.StatePlaying, Players: players("A", "B", "C"), CurrentJudgeIndex: 0},
			viewer: as("A"),
			want:   "JudgeWaiting",
			judge:  true,
			owner:  true,
		},
		{
			name: "player who submitted",
			snap: types.GameSnapshot{
				State: types.StatePlaying, Players: players("A", "B", "C"), CurrentJudgeIndex: 0,
				Submissions: []types.Submission{{ID: "s1", PlayerIndex: 2, CardID: "w1"}},
			},
			viewer:    as("C"),
			want:      "PlayerSubmitted",
			submitted: true,
		},
		{
			name: "player still selecting",
			snap: types.GameSnapshot{
				State: types.StatePlaying, Players: players("A", "B", "C"), CurrentJudgeIndex: 0,
				Submissions: []types.Submission{{ID: "s1", PlayerIndex: 2, CardID: "w1"}},
			},
			viewer: as("B"),
			want:   "PlayerSelect",
		},
		{
			name:   "judge selects the winner",
			snap:   types.GameSnapshot{State: types.StateJudging, Players: players("A", "B"), CurrentJudgeIndex: 1},
			viewer: as("B"),
			want:   "JudgeSelect",
			judge:  true,
		},
		{
			name:   "anonymous viewer during judging",
			snap:   types.GameSnapshot{State: types.StateJudging, Players: players("A", "B"), CurrentJudgeIndex: 1},
			viewer: nil,
			want:   "PlayerWaiting",
		},
		{
			name: "everyone sees the reveal",
			snap: types.GameSnapshot{
				State: types.StateReveal, Players: players("A", "B"), CurrentJudgeIndex: 1,
				LastRound: &types.LastRound{BlackCard: "b1", WhiteCard: "w1", WinningPlayerIndex: 0},
			},
			viewer: as("B"),
			want:   "Reveal",
			judge:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vs, err := Derive(tc.snap, tc.viewer)
			require.NoError(t, err)
			assert.Equal(t, tc.want, vs.State())
			assert.Equal(t, tc.judge, vs.IsJudge, "isJudge")
			assert.Equal(t, tc.owner, vs.IsOwner, "isOwner")
			assert.Equal(t, tc.submitted, vs.PlayerSubmitted, "playerSubmitted")
		})
	}
}

// The snapshots below elide attributes irrelevant to each scenario; player A
// is flagged as owner since every valid snapshot has one.

func TestDerive_ScenarioOwnerWaiting(t *testing.T) {
	snap := types.GameSnapshot{
		State:             types.StateNotStarted,
		Players:           []types.Player{{ID: "A", IsGameOwner: true}},
		CurrentJudgeIndex: -1,
		MinimumPlayers:    2,
	}
	vs, err := Derive(snap, as("A"))
	require.NoError(t, err)
	assert.Equal(t, OwnerWaiting{}, vs.Screen)
	assert.True(t, vs.IsOwner)
	assert.False(t, vs.IsJudge)
	require.NotNil(t, vs.CurrentPlayer)
	assert.Equal(t, "A", vs.CurrentPlayer.ID)
}

func TestDerive_ScenarioOwnerWaitingFromWire(t *testing.T) {
	var snap types.GameSnapshot
	raw := `{"id":"g1","state":"NotStarted","players":[{"id":"A","isGameOwner":true}],"minimumPlayers":2}`
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))

	vs, err := Derive(snap, as("A"))
	require.NoError(t, err)
	assert.Equal(t, OwnerWaiting{}, vs.Screen)
	assert.True(t, vs.IsOwner)
	assert.False(t, vs.IsJudge, "no judge before the first round")
}

func TestDerive_ScenarioPlayerWaiting(t *testing.T) {
	snap := types.GameSnapshot{
		State:             types.StateJudging,
		Players:           []types.Player{{ID: "A", IsGameOwner: true}, {ID: "B"}},
		CurrentJudgeIndex: 1,
	}
	vs, err := Derive(snap, as("A"))
	require.NoError(t, err)
	assert.Equal(t, PlayerWaiting{}, vs.Screen)
	assert.False(t, vs.IsJudge)
}

func TestDerive_ScenarioPlayerSubmitted(t *testing.T) {
	snap := types.GameSnapshot{
		State:             types.StatePlaying,
		Players:           []types.Player{{ID: "A", IsGameOwner: true}, {ID: "B"}},
		CurrentJudgeIndex: 0,
		Submissions:       []types.Submission{{PlayerIndex: 1, CardID: "w3"}},
	}
	vs, err := Derive(snap, as("B"))
	require.NoError(t, err)
	assert.Equal(t, PlayerSubmitted{}, vs.Screen)
	assert.True(t, vs.PlayerSubmitted)
}

func TestDerive_UnknownStateIsFatal(t *testing.T) {
	snap := types.GameSnapshot{ID: "g1", State: "Cancelled", Players: players("A"), CurrentJudgeIndex: -1}

	for _, viewer := range []*identity.Identity{nil, as("A")} {
		vs, err := Derive(snap, viewer)
		require.ErrorIs(t, err, ErrUnknownState)
		assert.Contains(t, err.Error(), "Cancelled")
		assert.Equal(t, ViewState{}, vs, "no partially filled view-state on error")
	}
}

func TestDerive_MissingOwnerIsFatal(t *testing.T) {
	snap := types.GameSnapshot{
		State:             types.StateNotStarted,
		Players:           []types.Player{{ID: "A"}, {ID: "B"}},
		CurrentJudgeIndex: -1,
	}
	vs, err := Derive(snap, as("A"))
	require.ErrorIs(t, err, ErrNoOwner)
	assert.Equal(t, ViewState{}, vs)
}

func TestDerive_NotStartedProperty(t *testing.T) {
	// every viewer/owner combination produces exactly one waiting screen
	viewers := []*identity.Identity{nil, as("A"), as("B"), as("C"), as("nobody")}
	for ownerIdx := 0; ownerIdx < 3; ownerIdx++ {
		ps := []types.Player{{ID: "A"}, {ID: "B"}, {ID: "C"}}
		ps[ownerIdx].IsGameOwner = true
		snap := types.GameSnapshot{State: types.StateNotStarted, Players: ps, CurrentJudgeIndex: -1}

		for _, v := range viewers {
			vs, err := Derive(snap, v)
			require.NoError(t, err)
			isOwner := v != nil && v.UserID == ps[ownerIdx].ID
			switch vs.Screen.(type) {
			case OwnerWaiting:
				assert.True(t, isOwner)
			case NewPlayerWaiting, NewPlayerForm:
				assert.False(t, isOwner)
			default:
				t.Fatalf("unexpected screen %s in NotStarted", vs.State())
			}
		}
	}
}

func TestDerive_PlayingJudgeProperty(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	for judge := range ids {
		for n := 0; n <= len(ids); n++ {
			snap := types.GameSnapshot{State: types.StatePlaying, Players: players(ids...), CurrentJudgeIndex: judge}
			for i := 0; i < n; i++ {
				if i == judge {
					continue
				}
				snap.Submissions = append(snap.Submissions, types.Submission{ID: fmt.Sprint(i), PlayerIndex: i, CardID: "w"})
			}

			for i, id := range ids {
				vs, err := Derive(snap, as(id))
				require.NoError(t, err)
				if i == judge {
					assert.Equal(t, JudgeWaiting{}, vs.Screen, "judge always waits")
					continue
				}
				assert.NotEqual(t, JudgeWaiting{}, vs.Screen, "non-judge never gets JudgeWaiting")
				_, submitted := snap.SubmissionFor(i)
				if submitted {
					assert.Equal(t, PlayerSubmitted{}, vs.Screen)
				} else {
					assert.Equal(t, PlayerSelect{}, vs.Screen)
				}
			}
		}
	}
}

func TestDerive_Idempotent(t *testing.T) {
	snap := types.GameSnapshot{
		State: types.StatePlaying, Players: players("A", "B", "C"), CurrentJudgeIndex: 1,
		Submissions: []types.Submission{{ID: "s", PlayerIndex: 0, CardID: "w9"}},
	}
	first, err := Derive(snap, as("A"))
	require.NoError(t, err)
	second, err := Derive(snap, as("A"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDerive_SubmittedOnlyWhilePlaying(t *testing.T) {
	snap := types.GameSnapshot{
		State: types.StateJudging, Players: players("A", "B"), CurrentJudgeIndex: 0,
		Submissions: []types.Submission{{ID: "s", PlayerIndex: 1, CardID: "w"}},
	}
	vs, err := Derive(snap, as("B"))
	require.NoError(t, err)
	assert.False(t, vs.PlayerSubmitted)
}

func TestDerive_CurrentPlayerIsACopy(t *testing.T) {
	snap := types.GameSnapshot{State: types.StateNotStarted, Players: players("A"), CurrentJudgeIndex: -1}
	vs, err := Derive(snap, as("A"))
	require.NoError(t, err)
	vs.CurrentPlayer.Name = "changed"
	assert.Equal(t, "Player A", snap.Players[0].Name)
}

func TestViewState_JSON(t *testing.T) {
	snap := types.GameSnapshot{State: types.StateNotStarted, Players: []types.Player{{ID: "A", IsGameOwner: true}}, CurrentJudgeIndex: -1}
	vs, err := Derive(snap, as("A"))
	require.NoError(t, err)

	raw, err := json.Marshal(vs)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "OwnerWaiting", got["state"])
	assert.Equal(t, true, got["isOwner"])
	assert.Equal(t, false, got["isJudge"])
}

type countingVisitor struct{ hits map[string]int }

func (c countingVisitor) OwnerWaiting(OwnerWaiting)         { c.hits["OwnerWaiting"]++ }
func (c countingVisitor) NewPlayerWaiting(NewPlayerWaiting) { c.hits["NewPlayerWaiting"]++ }
func (c countingVisitor) NewPlayerForm(NewPlayerForm)       { c.hits["NewPlayerForm"]++ }
func (c countingVisitor) JudgeWaiting(JudgeWaiting)         { c.hits["JudgeWaiting"]++ }
func (c countingVisitor) PlayerSubmitted(PlayerSubmitted)   { c.hits["PlayerSubmitted"]++ }
func (c countingVisitor) PlayerSelect(PlayerSelect)         { c.hits["PlayerSelect"]++ }
func (c countingVisitor) JudgeSelect(JudgeSelect)           { c.hits["JudgeSelect"]++ }
func (c countingVisitor) PlayerWaiting(PlayerWaiting)       { c.hits["PlayerWaiting"]++ }
func (c countingVisitor) Reveal(Reveal)                     { c.hits["Reveal"]++ }

func TestVisit_EveryScreenDispatchesToItsMethod(t *testing.T) {
	v := countingVisitor{hits: map[string]int{}}
	for _, s := range Screens {
		Visit(s, v)
	}
	require.Len(t, v.hits, 9)
	for _, s := range Screens {
		assert.Equal(t, 1, v.hits[s.Name()], s.Name())
	}
}
