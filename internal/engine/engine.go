package engine

import (
	"errors"
	"slices"
	"strings"

	"github.com/DoyleJ11/offensive-cards/pkg/types"
)

var ErrWrongTurn = errors.New("not your turn")
var ErrWrongPhase = errors.New("not allowed at this stage of the game")
var ErrNotOwner = errors.New("only the game owner can do that")
var ErrNotEnoughPlayers = errors.New("not enough players to start")
var ErrUnknownPlayer = errors.New("you are not part of this game")
var ErrInvalidPlayer = errors.New("a name and initials are required")
var ErrAlreadySubmitted = errors.New("you already submitted a card this round")
var ErrCardNotInHand = errors.New("that card is not in your hand")
var ErrNoRedeals = errors.New("no redeals remaining")
var ErrUnknownSubmission = errors.New("no such submission")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdStart      CommandType = "Start"
	CmdRedeal     CommandType = "Redeal"
	CmdSubmit     CommandType = "Submit"
	CmdPickWinner CommandType = "PickWinner"
	CmdNextRound  CommandType = "NextRound"
)

/*
	CmdJoin       -> EvtPlayerJoined
	CmdStart      -> EvtGameStarted -> EvtRoundStarted
	CmdRedeal     -> EvtHandRedealt
	CmdSubmit     -> EvtCardSubmitted -> (last one in) EvtJudgingStarted
	CmdPickWinner -> EvtWinnerPicked
	CmdNextRound  -> EvtRoundStarted
*/

type Command struct {
	Type         CommandType
	PlayerID     string          // acting player; for CmdJoin the id being issued
	Player       types.NewPlayer // CmdJoin
	CardID       string          // CmdSubmit
	SubmissionID string          // CmdPickWinner
}

type EventType string

const (
	EvtPlayerJoined   EventType = "PlayerJoined"
	EvtGameStarted    EventType = "GameStarted"
	EvtHandRedealt    EventType = "HandRedealt"
	EvtCardSubmitted  EventType = "CardSubmitted"
	EvtJudgingStarted EventType = "JudgingStarted"
	EvtWinnerPicked   EventType = "WinnerPicked"
	EvtRoundStarted   EventType = "RoundStarted"
)

type Event struct {
	Type     EventType
	PlayerID string
	CardID   string
}

// Apply validates cmd against g and returns the resulting game. g is never
// modified; on error the returned game is g itself.
func Apply(g Game, cmd Command) ([]Event, Game, error) {
	if cmd.Type == CmdJoin {
		return join(g, cmd)
	}

	idx := g.Snapshot.PlayerIndex(cmd.PlayerID)
	if cmd.PlayerID == "" || idx < 0 {
		return nil, g, ErrUnknownPlayer
	}

	switch cmd.Type {
	case CmdStart:
		if g.Snapshot.State != types.StateNotStarted {
			return nil, g, ErrWrongPhase
		}
		if !g.Snapshot.Players[idx].IsGameOwner {
			return nil, g, ErrNotOwner
		}
		if len(g.Snapshot.Players) < g.Snapshot.MinimumPlayers {
			return nil, g, ErrNotEnoughPlayers
		}

		next := g.Clone()
		for i := range next.Snapshot.Players {
			next.Snapshot.Players[i].Cards = next.drawWhite(g.Rules.HandSize)
			next.Snapshot.Players[i].RedealsLeft = g.Rules.Redeals
		}
		next.Snapshot.CurrentJudgeIndex = 0
		next.startRound()

		events := []Event{
			{Type: EvtGameStarted, PlayerID: cmd.PlayerID},
			{Type: EvtRoundStarted, PlayerID: next.Snapshot.Players[0].ID, CardID: next.Snapshot.CurrentBlackCard},
		}
		return events, next, nil

	case CmdRedeal:
		if g.Snapshot.State != types.StatePlaying {
			return nil, g, ErrWrongPhase
		}
		if g.Snapshot.Players[idx].RedealsLeft <= 0 {
			return nil, g, ErrNoRedeals
		}

		next := g.Clone()
		p := &next.Snapshot.Players[idx]
		next.WhiteDiscard = append(next.WhiteDiscard, p.Cards...)
		p.Cards = next.drawWhite(g.Rules.HandSize)
		p.RedealsLeft--
		return []Event{{Type: EvtHandRedealt, PlayerID: cmd.PlayerID}}, next, nil

	case CmdSubmit:
		if g.Snapshot.State != types.StatePlaying {
			return nil, g, ErrWrongPhase
		}
		if idx == g.Snapshot.CurrentJudgeIndex {
			return nil, g, ErrWrongTurn
		}
		if _, done := g.Snapshot.SubmissionFor(idx); done {
			return nil, g, ErrAlreadySubmitted
		}
		hand := g.Snapshot.Players[idx].Cards
		pos := slices.Index(hand, cmd.CardID)
		if pos < 0 {
			return nil, g, ErrCardNotInHand
		}

		next := g.Clone()
		p := &next.Snapshot.Players[idx]
		p.Cards = slices.Delete(p.Cards, pos, pos+1)
		next.Snapshot.Submissions = append(next.Snapshot.Submissions, types.Submission{
			ID:          newID(),
			PlayerIndex: idx,
			CardID:      cmd.CardID,
		})
		events := []Event{{Type: EvtCardSubmitted, PlayerID: cmd.PlayerID, CardID: cmd.CardID}}

		if len(next.Snapshot.Submissions) >= len(next.Snapshot.Players)-1 {
			next.shuffleSubmissions()
			next.Snapshot.State = types.StateJudging
			events = append(events, Event{Type: EvtJudgingStarted})
		}
		return events, next, nil

	case CmdPickWinner:
		if g.Snapshot.State != types.StateJudging {
			return nil, g, ErrWrongPhase
		}
		if idx != g.Snapshot.CurrentJudgeIndex {
			return nil, g, ErrWrongTurn
		}
		pos := slices.IndexFunc(g.Snapshot.Submissions, func(s types.Submission) bool {
			return s.ID == cmd.SubmissionID
		})
		if pos < 0 {
			return nil, g, ErrUnknownSubmission
		}

		next := g.Clone()
		win := next.Snapshot.Submissions[pos]
		next.Snapshot.Players[win.PlayerIndex].Score++
		next.Snapshot.LastRound = &types.LastRound{
			BlackCard:          next.Snapshot.CurrentBlackCard,
			WhiteCard:          win.CardID,
			WinningPlayerIndex: win.PlayerIndex,
			GifURL:             next.celebration(),
		}
		next.Snapshot.State = types.StateReveal
		winner := next.Snapshot.Players[win.PlayerIndex].ID
		return []Event{{Type: EvtWinnerPicked, PlayerID: winner, CardID: win.CardID}}, next, nil

	case CmdNextRound:
		if g.Snapshot.State != types.StateReveal {
			return nil, g, ErrWrongPhase
		}
		if idx != g.Snapshot.CurrentJudgeIndex {
			return nil, g, ErrWrongTurn
		}

		next := g.Clone()
		for _, s := range next.Snapshot.Submissions {
			next.WhiteDiscard = append(next.WhiteDiscard, s.CardID)
		}
		for i := range next.Snapshot.Players {
			p := &next.Snapshot.Players[i]
			if missing := g.Rules.HandSize - len(p.Cards); missing > 0 {
				p.Cards = append(p.Cards, next.drawWhite(missing)...)
			}
		}
		next.Snapshot.CurrentJudgeIndex = NextJudge(g.Snapshot.CurrentJudgeIndex, len(g.Snapshot.Players))
		next.startRound()
		judge := next.Snapshot.Players[next.Snapshot.CurrentJudgeIndex].ID
		return []Event{{Type: EvtRoundStarted, PlayerID: judge, CardID: next.Snapshot.CurrentBlackCard}}, next, nil

	default:
		return nil, g, ErrUnsupportedCommand
	}
}

func join(g Game, cmd Command) ([]Event, Game, error) {
	if g.Snapshot.State != types.StateNotStarted {
		return nil, g, ErrWrongPhase
	}
	name := strings.TrimSpace(cmd.Player.Name)
	short := strings.ToUpper(strings.TrimSpace(cmd.Player.Short))
	if name == "" || short == "" || cmd.PlayerID == "" {
		return nil, g, ErrInvalidPlayer
	}
	if g.Snapshot.PlayerIndex(cmd.PlayerID) >= 0 {
		return nil, g, ErrInvalidPlayer
	}

	next := g.Clone()
	next.Snapshot.Players = append(next.Snapshot.Players, types.Player{
		ID:    cmd.PlayerID,
		Name:  name,
		Short: short,
	})
	return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID}}, next, nil
}
