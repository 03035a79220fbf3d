package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/DoyleJ11/offensive-cards/internal/cards"
	"github.com/DoyleJ11/offensive-cards/internal/play"
	"github.com/DoyleJ11/offensive-cards/internal/view"
)

// renderer prints one frame as plain text.
type renderer struct {
	w   io.Writer
	cat *cards.Catalog
	f   play.Frame
}

func render(w io.Writer, cat *cards.Catalog, f play.Frame) {
	if f.Fatal != nil {
		fmt.Fprintf(w, "The game can no longer be shown: %v\n", f.Fatal)
		return
	}
	if !f.Loaded() {
		return
	}
	r := &renderer{w: w, cat: cat, f: f}
	r.scores()
	view.Visit(f.View.Screen, r)
	if f.Notice != "" {
		fmt.Fprintf(w, "%s (type dismiss to clear)\n", f.Notice)
	}
}

func (r *renderer) scores() {
	var parts []string
	for _, b := range play.Badges(r.f.Snapshot, r.f.View) {
		s := fmt.Sprintf("%s %d", b.Player.Short, b.Player.Score)
		switch {
		case b.Judge:
			s += " (judge)"
		case b.Submitted:
			s += " ✓"
		}
		if b.Current {
			s = "[" + s + "]"
		}
		parts = append(parts, s)
	}
	fmt.Fprintln(r.w, strings.Join(parts, "  "))
}

func (r *renderer) prompt() {
	fmt.Fprintf(r.w, "\n  %s\n\n", play.Prompt(r.cat, r.f.Snapshot))
}

func (r *renderer) list(items []play.CardText) {
	for i, c := range items {
		fmt.Fprintf(r.w, "  %d) %s\n", i+1, c.Text)
	}
}

func (r *renderer) OwnerWaiting(view.OwnerWaiting) {
	n := len(r.f.Snapshot.Players)
	fmt.Fprintf(r.w, "%d of %d players have joined. Share this game's link to invite more.\n", n, r.f.Snapshot.MinimumPlayers)
	if play.CanStart(r.f.Snapshot) {
		fmt.Fprintln(r.w, "Type start to begin.")
	}
}

func (r *renderer) NewPlayerWaiting(view.NewPlayerWaiting) {
	fmt.Fprintln(r.w, "You're in. Waiting for the owner to start the game.")
}

func (r *renderer) NewPlayerForm(view.NewPlayerForm) {
	fmt.Fprintln(r.w, "Join this game with: join <name> <short>")
}

func (r *renderer) JudgeWaiting(view.JudgeWaiting) {
	r.prompt()
	done, want := play.Progress(r.f.Snapshot)
	fmt.Fprintf(r.w, "You're the judge. %d of %d cards are in.\n", done, want)
}

func (r *renderer) PlayerSubmitted(view.PlayerSubmitted) {
	r.prompt()
	if c, ok := play.OwnSubmission(r.cat, r.f.Snapshot, r.f.View); ok {
		fmt.Fprintf(r.w, "You played: %s\n", c.Text)
	}
	fmt.Fprintln(r.w, "Waiting for everyone else.")
}

func (r *renderer) PlayerSelect(view.PlayerSelect) {
	r.prompt()
	r.list(play.Hand(r.cat, r.f.View))
	left := 0
	if p := r.f.View.CurrentPlayer; p != nil {
		left = p.RedealsLeft
	}
	fmt.Fprintf(r.w, "Type select <n> to play a card. %s\n", play.RedealWording(left))
}

func (r *renderer) JudgeSelect(view.JudgeSelect) {
	r.prompt()
	r.list(play.Submissions(r.cat, r.f.Snapshot))
	fmt.Fprintln(r.w, "Type select <n> to pick the winner.")
}

func (r *renderer) PlayerWaiting(view.PlayerWaiting) {
	r.prompt()
	r.list(play.Submissions(r.cat, r.f.Snapshot))
	fmt.Fprintf(r.w, "Waiting for %s to pick a winner.\n", play.JudgeName(r.f.Snapshot))
}

func (r *renderer) Reveal(view.Reveal) {
	s, ok := play.Reveal(r.cat, r.f.Snapshot, r.f.View)
	if !ok {
		fmt.Fprintln(r.w, "The round is over.")
		return
	}
	fmt.Fprintf(r.w, "%s wins the round:\n\n  %s\n\n", s.Winner.Name, s.Text)
	if s.GifURL != "" {
		fmt.Fprintln(r.w, s.GifURL)
	}
	if s.CanAdvance {
		fmt.Fprintln(r.w, "Type next to deal the next round.")
	}
}

// selectable is what select <n> indexes into on the current screen.
func selectable(cat *cards.Catalog, f play.Frame) []play.CardText {
	switch f.View.Screen.(type) {
	case view.JudgeSelect:
		return play.Submissions(cat, f.Snapshot)
	case view.PlayerSelect:
		return play.Hand(cat, f.View)
	}
	return nil
}
