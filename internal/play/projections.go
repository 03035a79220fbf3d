package play

import (
	"fmt"

	"github.com/DoyleJ11/offensive-cards/internal/cards"
	"github.com/DoyleJ11/offensive-cards/internal/view"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
)

// PlayerBadge is one entry of the score strip.
type PlayerBadge struct {
	Player    types.Player
	Current   bool
	Judge     bool
	Submitted bool
}

// CardText is a selectable card: a hand card by card id, or a submission by
// submission id.
type CardText struct {
	ID   string
	Text string
}

type RevealSummary struct {
	Winner     types.Player
	Text       string // the prompt with the winning answer filled in
	GifURL     string
	CanAdvance bool // only the judge moves on to the next round
}

func Badges(g types.GameSnapshot, v view.ViewState) []PlayerBadge {
	out := make([]PlayerBadge, len(g.Players))
	for i, p := range g.Players {
		_, submitted := g.SubmissionFor(i)
		out[i] = PlayerBadge{
			Player:    p,
			Current:   v.CurrentPlayer != nil && v.CurrentPlayer.ID == p.ID,
			Judge:     i == g.CurrentJudgeIndex,
			Submitted: submitted,
		}
	}
	return out
}

// Prompt is the round's black card with its blank drawn as a line.
func Prompt(cat *cards.Catalog, g types.GameSnapshot) string {
	return cards.Display(cat.BlackText(g.CurrentBlackCard))
}

func Hand(cat *cards.Catalog, v view.ViewState) []CardText {
	if v.CurrentPlayer == nil {
		return nil
	}
	out := make([]CardText, 0, len(v.CurrentPlayer.Cards))
	for _, id := range v.CurrentPlayer.Cards {
		out = append(out, CardText{ID: id, Text: cat.WhiteText(id)})
	}
	return out
}

func Submissions(cat *cards.Catalog, g types.GameSnapshot) []CardText {
	out := make([]CardText, 0, len(g.Submissions))
	for _, s := range g.Submissions {
		out = append(out, CardText{ID: s.ID, Text: cat.WhiteText(s.CardID)})
	}
	return out
}

// OwnSubmission is the card the viewer played this round.
func OwnSubmission(cat *cards.Catalog, g types.GameSnapshot, v view.ViewState) (CardText, bool) {
	if v.CurrentPlayer == nil {
		return CardText{}, false
	}
	s, ok := g.SubmissionFor(g.PlayerIndex(v.CurrentPlayer.ID))
	if !ok {
		return CardText{}, false
	}
	return CardText{ID: s.CardID, Text: cat.WhiteText(s.CardID)}, true
}

// Progress counts submissions against the number expected this round.
func Progress(g types.GameSnapshot) (submitted, expected int) {
	return len(g.Submissions), max(len(g.Players)-1, 0)
}

func Reveal(cat *cards.Catalog, g types.GameSnapshot, v view.ViewState) (RevealSummary, bool) {
	lr := g.LastRound
	if lr == nil || lr.WinningPlayerIndex < 0 || lr.WinningPlayerIndex >= len(g.Players) {
		return RevealSummary{}, false
	}
	return RevealSummary{
		Winner:     g.Players[lr.WinningPlayerIndex],
		Text:       cards.Fill(cat.BlackText(lr.BlackCard), cat.WhiteText(lr.WhiteCard)),
		GifURL:     lr.GifURL,
		CanAdvance: v.IsJudge,
	}, true
}

// CanStart reports whether enough players have joined.
func CanStart(g types.GameSnapshot) bool {
	return len(g.Players) >= g.MinimumPlayers
}

func RedealWording(left int) string {
	switch left {
	case 0:
		return "You have no redeals remaining."
	case 1:
		return "You have one redeal remaining."
	default:
		return fmt.Sprintf("You have %d redeals remaining.", left)
	}
}

// JudgeName is who the other players are waiting on.
func JudgeName(g types.GameSnapshot) string {
	if j, ok := g.Judge(); ok {
		return j.Name
	}
	return ""
}
