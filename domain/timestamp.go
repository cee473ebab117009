package domain

import (
	"fmt"
	"time"
)

// DefaultSkewTolerance bounds how far a created_at may sit in the future
// relative to the validator's clock before it is rejected.
const DefaultSkewTolerance = 5 * time.Minute

// abstraction of time.Now() for testing
var TimeNow = func() time.Time {
	return time.Now().UTC()
}

// TimestampValidator checks the ordering and freshness of the lineage
// timestamps on a record. It is pure: the same record and reference time
// always give the same answer.
type TimestampValidator struct {
	SkewTolerance time.Duration
}

func NewTimestampValidator() TimestampValidator {
	return TimestampValidator{SkewTolerance: DefaultSkewTolerance}
}

// Validate rejects a record whose later-stage timestamps run backwards or
// whose created_at lies in the future beyond the skew tolerance. Absent
// (zero) timestamps are skipped: a record fresh from the UI has only
// created_at and that is fine.
func (v TimestampValidator) Validate(record ConsentRecord, reference time.Time) error {
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is not set", ErrInvalidTimestamp)
	}
	if record.CreatedAt.After(reference.Add(v.SkewTolerance)) {
		return fmt.Errorf("%w: created_at %s is in the future", ErrInvalidTimestamp, record.CreatedAt.Format(time.RFC3339))
	}

	stages := []struct {
		name string
		at   time.Time
	}{
		{"created_at", record.CreatedAt},
		{"stored_at", record.StoredAt},
		{"request_at", record.RequestAt},
		{"validated_at", record.ValidatedAt},
	}

	previous := stages[0]
	for _, stage := range stages[1:] {
		if stage.at.IsZero() {
			continue
		}
		if stage.at.Before(previous.at) {
			return fmt.Errorf("%w: %s %s precedes %s %s", ErrInvalidTimestamp,
				stage.name, stage.at.Format(time.RFC3339),
				previous.name, previous.at.Format(time.RFC3339))
		}
		previous = stage
	}

	if !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(record.CreatedAt) {
		return fmt.Errorf("%w: expires_at must be after created_at", ErrInvalidTimestamp)
	}
	return nil
}
