package engine

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"github.com/google/uuid"
)

// Game is the authoritative state of one game: the full snapshot, every hand
// included, plus the draw piles.
type Game struct {
	Snapshot     types.GameSnapshot
	Rules        Rules
	BlackPile    []string
	WhitePile    []string
	WhiteDiscard []string
	Seed         uint64
	Shuffles     uint64
}

// NewGame creates a NotStarted game owned by ownerID.
func NewGame(gameID, ownerID string, owner types.NewPlayer, deck types.CardCatalog, rules Rules, seed uint64) (Game, error) {
	name := strings.TrimSpace(owner.Name)
	short := strings.ToUpper(strings.TrimSpace(owner.Short))
	if name == "" || short == "" || ownerID == "" {
		return Game{}, ErrInvalidPlayer
	}
	g := Game{
		Snapshot: types.GameSnapshot{
			ID:                gameID,
			State:             types.StateNotStarted,
			Players:           []types.Player{{ID: ownerID, Name: name, Short: short, IsGameOwner: true}},
			CurrentJudgeIndex: -1,
			Submissions:       []types.Submission{},
			MinimumPlayers:    rules.MinimumPlayers,
		},
		Rules: rules,
		Seed:  seed,
	}
	for _, c := range deck.BlackCards {
		g.BlackPile = append(g.BlackPile, c.ID)
	}
	for _, c := range deck.WhiteCards {
		g.WhitePile = append(g.WhitePile, c.ID)
	}
	g.shuffle(g.BlackPile)
	g.shuffle(g.WhitePile)
	return g, nil
}

// Clone deep-copies g so Apply can build the next state without touching g.
func (g Game) Clone() Game {
	out := g
	out.Snapshot = g.Snapshot.Clone()
	out.BlackPile = slices.Clone(g.BlackPile)
	out.WhitePile = slices.Clone(g.WhitePile)
	out.WhiteDiscard = slices.Clone(g.WhiteDiscard)
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func (g *Game) startRound() {
	g.Snapshot.Submissions = []types.Submission{}
	g.Snapshot.LastRound = nil
	g.Snapshot.CurrentBlackCard = g.drawBlack()
	g.Snapshot.State = types.StatePlaying
}

func (g *Game) drawBlack() string {
	if len(g.BlackPile) == 0 {
		return ""
	}
	c := g.BlackPile[0]
	// prompts cycle back to the bottom once used
	g.BlackPile = append(g.BlackPile[1:], c)
	return c
}

func (g *Game) drawWhite(n int) []string {
	out := make([]string, 0, n)
	for len(out) < n {
		if len(g.WhitePile) == 0 {
			if len(g.WhiteDiscard) == 0 {
				break
			}
			g.WhitePile, g.WhiteDiscard = g.WhiteDiscard, nil
			g.shuffle(g.WhitePile)
		}
		out = append(out, g.WhitePile[0])
		g.WhitePile = g.WhitePile[1:]
	}
	return out
}

func (g *Game) shuffleSubmissions() {
	r := g.rng()
	r.Shuffle(len(g.Snapshot.Submissions), func(i, j int) {
		g.Snapshot.Submissions[i], g.Snapshot.Submissions[j] = g.Snapshot.Submissions[j], g.Snapshot.Submissions[i]
	})
}

func (g *Game) shuffle(ids []string) {
	r := g.rng()
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

func (g *Game) celebration() string {
	if len(g.Rules.Celebrations) == 0 {
		return ""
	}
	return g.Rules.Celebrations[g.rng().IntN(len(g.Rules.Celebrations))]
}

// rng is deterministic for a given seed and shuffle count.
func (g *Game) rng() *rand.Rand {
	g.Shuffles++
	return rand.New(rand.NewPCG(g.Seed, g.Shuffles))
}

// newID issues submission ids; tests may stub it.
var newID = func() string {
	return uuid.NewString()
}
