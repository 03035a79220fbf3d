package types

import (
	"encoding/json"
	"fmt"
)

// UserIDHeader carries the issued user id: set by the server on create/join
// responses and sent back by the client on every authenticated request.
const UserIDHeader = "cards-userId"

// Client -> Server

type NewPlayer struct {
	Name  string `json:"name"`
	Short string `json:"short"`
}

// PlayerRequest is the body of POST /games and POST /games/{id}/join.
type PlayerRequest struct {
	Player NewPlayer `json:"player"`
}

type SubmitRequest struct {
	SubmittedCard string `json:"submittedCard"`
}

type PickWinnerRequest struct {
	WinningSubmissionID string `json:"winningSubmissionId"`
}

// Server -> Client

// ErrorBody is returned with every non-success response.
type ErrorBody struct {
	Message string `json:"message"`
}

// PushMessage is one frame on the push channel: either a full snapshot or an
// error envelope {"error": ...}.
type PushMessage struct {
	Snapshot *GameSnapshot
	Error    string
}

func (m PushMessage) MarshalJSON() ([]byte, error) {
	if m.Snapshot == nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: m.Error})
	}
	return json.Marshal(m.Snapshot)
}

func (m *PushMessage) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if len(probe.Error) > 0 && string(probe.Error) != "null" {
		var text string
		if err := json.Unmarshal(probe.Error, &text); err != nil {
			// non-string payloads are kept verbatim
			text = string(probe.Error)
		}
		if text == "" {
			text = "unspecified server error"
		}
		*m = PushMessage{Error: text}
		return nil
	}
	var snap GameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("push frame carries neither a snapshot nor an error")
	}
	*m = PushMessage{Snapshot: &snap}
	return nil
}

// Card catalog, GET /cards

type Card struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type CardCatalog struct {
	BlackCards []Card `json:"blackCards"`
	WhiteCards []Card `json:"whiteCards"`
}
