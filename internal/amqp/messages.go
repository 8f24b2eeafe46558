package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"khata/internal/core"
)

// PropagationRequest asks the worker to recompute daily balances forward
// from a date. Bulk import and restore tooling publish it once, after all
// rows have landed.
type PropagationRequest struct {
	ID          string    `json:"id"`
	From        string    `json:"from"` // YYYY-MM-DD; empty means from the earliest known date
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewPropagationRequest creates a request starting at from. A zero from asks
// for a full repair.
func NewPropagationRequest(from core.Date, reason string) *PropagationRequest {
	req := &PropagationRequest{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now(),
	}
	if !from.IsZero() {
		req.From = from.String()
	}
	return req
}

// FromDate parses From. It returns the zero date for a full repair.
func (m *PropagationRequest) FromDate() (core.Date, error) {
	if m.From == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(m.From)
	if err != nil {
		return core.Date{}, core.NewValidationError("from", fmt.Sprintf("invalid date %q", m.From))
	}
	return d, nil
}

// Key identifies requests that do the same work, so equal dates written
// differently share a key.
func (m *PropagationRequest) Key() string {
	d, err := m.FromDate()
	switch {
	case err != nil:
		return m.From
	case d.IsZero():
		return "all"
	}
	return d.String()
}

func (m *PropagationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PropagationRequestFromJSON(data []byte) (*PropagationRequest, error) {
	var msg PropagationRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.FromDate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
