// Package lineage persists the audit trail: one immutable entry per
// consent state transition, in the order the transitions were applied.
package lineage

import (
	"context"
	"time"
)

// Entry is one observed transition. Seq is assigned by the log at append
// time, so entries that share a timestamp still carry their arrival
// order.
type Entry struct {
	Seq        int64     `json:"seq"`
	SubjectID  string    `json:"subject_id"`
	Transition string    `json:"transition"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`

	UserID        string    `json:"user_id,omitempty"`
	ConsentString string    `json:"consent_string,omitempty"`
	RequestAt     time.Time `json:"request_at,omitempty"`
	ValidatedAt   time.Time `json:"validated_at,omitempty"`
	Result        string    `json:"result,omitempty"`
}

// Log is append-only. Append must be safe for concurrent use; the seq it
// assigns defines the authoritative transition order.
type Log interface {
	Append(ctx context.Context, entry Entry) error
}
