package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsentNamespace is the uuid namespace used to derive deterministic
// per-subject ids, so every submission for the same subject maps to the
// same critical section on the server.
var ConsentNamespace = uuid.Must(uuid.Parse("6ba7b812-9dad-11d1-80b4-00c04fd430c8"))

type State string

const (
	StateCreated   = State("created")
	StateStored    = State("stored")
	StateSubmitted = State("submitted")
	StateValidated = State("validated")
	StateExpired   = State("expired")
	StateRejected  = State("rejected")
)

type Decision string

const (
	DecisionGranted = Decision("granted")
	DecisionDenied  = Decision("denied")
	DecisionPending = Decision("pending")
)

// ConsentRecord is one consent decision together with the timestamps it
// collects on its way from the client UI to the server. SubjectID and
// Payload never change after creation; a changed preference is a new
// record. The server alone writes ValidatedAt, ExpiresAt and Decision.
type ConsentRecord struct {
	SubjectID string `json:"subject_id"`
	// Payload is the encoded preference blob. Opaque everywhere except
	// the scope matrix.
	Payload []byte `json:"consent_payload"`

	CreatedAt   time.Time `json:"created_at"`
	StoredAt    time.Time `json:"stored_at,omitempty"`
	RequestAt   time.Time `json:"request_at,omitempty"`
	ValidatedAt time.Time `json:"validated_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`

	State    State    `json:"state"`
	Decision Decision `json:"decision,omitempty"`
}

// NewConsentRecord stamps created_at and puts the record in its initial
// state. All other timestamps stay zero until the owning stage sets them.
func NewConsentRecord(subjectID string, payload []byte, createdAt time.Time) ConsentRecord {
	return ConsentRecord{
		SubjectID: subjectID,
		Payload:   payload,
		CreatedAt: createdAt.UTC(),
		State:     StateCreated,
		Decision:  DecisionPending,
	}
}

// SubjectUUID derives the per-subject aggregate id.
func SubjectUUID(subjectID string) uuid.UUID {
	return uuid.NewSHA1(ConsentNamespace, []byte(subjectID))
}

// Terminal reports whether the record reached a state that is never
// mutated again, only superseded.
func (r ConsentRecord) Terminal() bool {
	switch r.State {
	case StateValidated, StateExpired, StateRejected:
		return true
	}
	return false
}

// Supersedes reports whether r is strictly newer than other for the same
// subject, judged on created_at only.
func (r ConsentRecord) Supersedes(other ConsentRecord) bool {
	return r.SubjectID == other.SubjectID && r.CreatedAt.After(other.CreatedAt)
}

// AttemptKey identifies one submission attempt. Retransmissions of the
// same record share subject and created_at but differ in request_at.
func (r ConsentRecord) AttemptKey() string {
	return r.SubjectID + "|" + r.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + r.RequestAt.UTC().Format(time.RFC3339Nano)
}
