package events

import (
	"time"

	eh "github.com/looplab/eventhorizon"
)

const ConsentAggregateType = eh.AggregateType("consent")

const ConsentSubmissionReceived = eh.EventType("consent:submission-received")
const ConsentValidated = eh.EventType("consent:validated")
const ConsentRejected = eh.EventType("consent:rejected")
const ConsentExpired = eh.EventType("consent:expired")
const ConsentSuperseded = eh.EventType("consent:superseded")
const ConsentDuplicate = eh.EventType("consent:duplicate")

// TransitionData travels with every lineage event. It mirrors the entry
// written to the lineage log so observers see the same picture the audit
// trail records.
type TransitionData struct {
	SubjectID   string
	FromState   string
	ToState     string
	Decision    string
	Reason      string
	CreatedAt   time.Time
	RequestAt   time.Time
	ValidatedAt time.Time
	OccurredAt  time.Time
}

func init() {
	for _, eventType := range []eh.EventType{
		ConsentSubmissionReceived,
		ConsentValidated,
		ConsentRejected,
		ConsentExpired,
		ConsentSuperseded,
		ConsentDuplicate,
	} {
		eh.RegisterEventData(eventType, func() eh.EventData {
			return &TransitionData{}
		})
	}
}
