package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to a project's funds.
type EventKind string

const (
	EventCarryForward     EventKind = "carry_forward"
	EventOverrideSet      EventKind = "override_set"
	EventOverrideCleared  EventKind = "override_cleared"
	EventHeadsUpdated     EventKind = "heads_updated"
	EventInstituteExpense EventKind = "institute_expense"
	EventReimbursement    EventKind = "reimbursement"
	EventReimbursementPay EventKind = "reimbursement_paid"
)

// FundEventMessage tells the worker that a project's balance changed.
// It only carries identifiers; the worker reloads state from storage.
type FundEventMessage struct {
	Kind        EventKind `json:"kind"`
	ProjectID   uuid.UUID `json:"project_id"`
	PeriodIndex int       `json:"period_index"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewFundEventMessage(kind EventKind, projectID uuid.UUID, periodIndex int) *FundEventMessage {
	return &FundEventMessage{
		Kind:        kind,
		ProjectID:   projectID,
		PeriodIndex: periodIndex,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *FundEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FundEventMessageFromJSON decodes and sanity checks a message body.
func FundEventMessageFromJSON(data []byte) (*FundEventMessage, error) {
	var msg FundEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("fund event missing kind or project id")
	}
	return &msg, nil
}
