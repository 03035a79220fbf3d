package types

import (
	"encoding/json"
	"slices"
)

// GameSnapshot is the authoritative game object as returned by the remote API.
//
//	id: string
//	state: "NotStarted" | "Playing" | "Judging" | "Reveal"
//	players: Player[]            // join order, stable
//	currentJudgeIndex: number    // -1 before the first round
//	submissions: Submission[]    // one per player per round
//	currentBlackCard: string
//	lastRound: LastRound         // Reveal only
//	minimumPlayers: number
type GameSnapshot struct {
	ID                string       `json:"id"`
	State             GameState    `json:"state"`
	Players           []Player     `json:"players"`
	CurrentJudgeIndex int          `json:"currentJudgeIndex"`
	Submissions       []Submission `json:"submissions"`
	CurrentBlackCard  string       `json:"currentBlackCard,omitempty"`
	LastRound         *LastRound   `json:"lastRound,omitempty"`
	MinimumPlayers    int          `json:"minimumPlayers"`
}

// UnmarshalJSON reads a missing or null currentJudgeIndex as -1: no judge yet.
func (g *GameSnapshot) UnmarshalJSON(data []byte) error {
	type plain GameSnapshot
	p := plain{CurrentJudgeIndex: -1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = GameSnapshot(p)
	return nil
}

type GameState string

const (
	StateNotStarted GameState = "NotStarted"
	StatePlaying    GameState = "Playing"
	StateJudging    GameState = "Judging"
	StateReveal     GameState = "Reveal"
)

type Player struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Short       string   `json:"short"`
	Score       int      `json:"score"`
	IsGameOwner bool     `json:"isGameOwner"`
	Cards       []string `json:"cards,omitempty"`       // viewer's own hand only
	RedealsLeft int      `json:"redealsLeft,omitempty"` // viewer only
}

// Submission.PlayerIndex points into Players and is only stable for one round.
type Submission struct {
	ID          string `json:"id"`
	PlayerIndex int    `json:"playerIndex"`
	CardID      string `json:"cardId"`
}

type LastRound struct {
	BlackCard          string `json:"blackCard"`
	WhiteCard          string `json:"whiteCard"`
	WinningPlayerIndex int    `json:"winningPlayerIndex"`
	GifURL             string `json:"gifUrl,omitempty"`
}

// PlayerIndex returns the position of the player with the given id, or -1.
func (g GameSnapshot) PlayerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Judge returns the current judge, if one has been chosen.
func (g GameSnapshot) Judge() (Player, bool) {
	if g.CurrentJudgeIndex < 0 || g.CurrentJudgeIndex >= len(g.Players) {
		return Player{}, false
	}
	return g.Players[g.CurrentJudgeIndex], true
}

// SubmissionFor returns the submission made from the given player index this round.
func (g GameSnapshot) SubmissionFor(playerIndex int) (Submission, bool) {
	for _, s := range g.Submissions {
		if s.PlayerIndex == playerIndex {
			return s, true
		}
	}
	return Submission{}, false
}

// ForViewer returns a copy in which only viewerID's hand and redeal count are
// present. An empty viewerID strips every hand.
func (g GameSnapshot) ForViewer(viewerID string) GameSnapshot {
	out := g
	out.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		if viewerID == "" || p.ID != viewerID {
			p.Cards = nil
			p.RedealsLeft = 0
		} else {
			p.Cards = append([]string(nil), p.Cards...)
		}
		out.Players[i] = p
	}
	out.Submissions = slices.Clone(g.Submissions)
	if g.LastRound != nil {
		lr := *g.LastRound
		out.LastRound = &lr
	}
	return out
}

// Clone deep-copies the snapshot so callers can hold it past the next update.
func (g GameSnapshot) Clone() GameSnapshot {
	out := g
	out.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		p.Cards = append([]string(nil), p.Cards...)
		out.Players[i] = p
	}
	out.Submissions = slices.Clone(g.Submissions)
	if g.LastRound != nil {
		lr := *g.LastRound
		out.LastRound = &lr
	}
	return out
}
