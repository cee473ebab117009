package api

const SyncPath = "/api/v1/consent/sync"
const RecordPath = "/api/v1/consent/:deviceId"

const StatusSuccess = "Success"
const StatusFailure = "Failure"

// SyncRequest is the wire form of a submission. ConsentString, Timestamp
// and DeviceID are required; StoredAt and RequestAt carry the rest of
// the client-side lineage. All timestamps are RFC3339 UTC.
type SyncRequest struct {
	ConsentString string `json:"consentString"`
	Timestamp     string `json:"timestamp"`
	DeviceID      string `json:"deviceId"`
	StoredAt      string `json:"storedAt,omitempty"`
	RequestAt     string `json:"requestAt,omitempty"`
}

type SyncResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Decision    string `json:"decision,omitempty"`
	ValidatedAt string `json:"validatedAt,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
