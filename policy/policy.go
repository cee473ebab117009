package policy

import (
	"encoding/base64"
	"encoding/json"

	"github.com/thedevsaddam/gojsonq/v2"

	"github.com/consent-lineage/consent-sync-service/domain"
)

// ScopeMatrix decides whether a consent payload grants the requested
// scopes. Implementations are policy; the engine only calls Evaluate and
// propagates the outcome.
type ScopeMatrix interface {
	Evaluate(payload []byte, requestedScopes []string) (domain.Decision, error)
}

// PurposeMatrix reads granted/denied purpose flags out of the decoded
// consent payload. The payload is base64 of a JSON document with a
// top-level "purposes" object; a raw JSON payload works too. Subjects
// that never configured purposes fall through to Granted, so an empty
// matrix behaves as allow-all.
type PurposeMatrix struct{}

func (PurposeMatrix) Evaluate(payload []byte, requestedScopes []string) (domain.Decision, error) {
	if len(requestedScopes) == 0 {
		return domain.DecisionGranted, nil
	}

	document, ok := decodePayload(payload)
	if !ok {
		// An opaque payload cannot prove any specific purpose grant.
		return domain.DecisionDenied, nil
	}

	for _, scope := range requestedScopes {
		jsonq := gojsonq.New().FromString(document)
		granted, ok := jsonq.Find("purposes." + scope).(bool)
		if !ok || !granted {
			return domain.DecisionDenied, nil
		}
	}
	return domain.DecisionGranted, nil
}

func decodePayload(payload []byte) (string, bool) {
	candidate := payload
	if decoded, err := base64.StdEncoding.DecodeString(string(payload)); err == nil {
		candidate = decoded
	}
	if !json.Valid(candidate) {
		return "", false
	}
	return string(candidate), true
}

// EncodePayload builds the wire form of a preference set: base64 over the
// JSON purposes document. The counterpart of decodePayload.
func EncodePayload(purposes map[string]bool) ([]byte, error) {
	document, err := json.Marshal(struct {
		Purposes map[string]bool `json:"purposes"`
	}{Purposes: purposes})
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(document)), nil
}
