// Package client implements the device side of the sync protocol: it
// keeps the consent record in the device store, submits it to the sync
// server, and caches the server's decision for offline reads.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/consent-lineage/consent-sync-service/api"
	"github.com/consent-lineage/consent-sync-service/devicestore"
	"github.com/consent-lineage/consent-sync-service/domain"
	"github.com/consent-lineage/consent-sync-service/pkg/logger"
)

const consentKeyPrefix = "consent/"
const decisionKeyPrefix = "decision/"

const DefaultMaxAttempts = 4
const DefaultInitialBackoff = 250 * time.Millisecond

// SyncResult is the acknowledged outcome of one submission.
type SyncResult struct {
	Accepted        bool
	Decision        domain.Decision
	ServerTimestamp time.Time
}

// CachedDecision is the last server decision, kept in the device store
// for offline reads. The server copy stays authoritative; the cache is
// replaced on every successful sync.
type CachedDecision struct {
	Decision    domain.Decision `json:"decision"`
	ValidatedAt time.Time       `json:"validated_at"`
}

type Client struct {
	Store      devicestore.Store
	ServerURL  string
	HTTPClient *http.Client

	Validator      domain.TimestampValidator
	MaxAttempts    int
	InitialBackoff time.Duration
}

func New(store devicestore.Store, serverURL string) *Client {
	return &Client{
		Store:          store,
		ServerURL:      serverURL,
		HTTPClient:     &http.Client{Timeout: 10 * time.Second},
		Validator:      domain.NewTimestampValidator(),
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
	}
}

// Capture persists a freshly created record to the device store,
// stamping stored_at. Local clock drift is caught here, before the
// record ever reaches the network.
func (c *Client) Capture(record domain.ConsentRecord) error {
	record.StoredAt = domain.TimeNow()
	record.State = domain.StateStored

	if err := c.Validator.Validate(record, domain.TimeNow()); err != nil {
		return err
	}
	return c.putRecord(record)
}

// Record returns the most recent locally stored record for a subject.
func (c *Client) Record(subjectID string) (domain.ConsentRecord, error) {
	raw, err := c.Store.Get([]byte(consentKeyPrefix + subjectID))
	if errors.Is(err, devicestore.ErrKeyNotFound) {
		return domain.ConsentRecord{}, domain.ErrMissingRecord
	}
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	var record domain.ConsentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.ConsentRecord{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return record, nil
}

// Decision returns the cached server decision for offline reads.
func (c *Client) Decision(subjectID string) (CachedDecision, error) {
	raw, err := c.Store.Get([]byte(decisionKeyPrefix + subjectID))
	if errors.Is(err, devicestore.ErrKeyNotFound) {
		return CachedDecision{}, domain.ErrMissingRecord
	}
	if err != nil {
		return CachedDecision{}, err
	}
	var cached CachedDecision
	if err := json.Unmarshal(raw, &cached); err != nil {
		return CachedDecision{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return cached, nil
}

// Submit sends the stored record for subjectID to the sync server.
// request_at is stamped immediately before each network attempt, so
// every retry carries a fresh, accurate timestamp. Transient network
// failures are retried with exponential backoff up to MaxAttempts; on
// exhaustion the record stays in the stored state and the error
// surfaces. Only an acknowledged response moves the local state to
// submitted.
func (c *Client) Submit(ctx context.Context, subjectID string) (SyncResult, error) {
	record, err := c.Record(subjectID)
	if err != nil {
		return SyncResult{}, err
	}
	if record.Terminal() {
		return SyncResult{}, fmt.Errorf("%w: record for %s is terminal, capture a new consent", domain.ErrMissingRecord, subjectID)
	}

	backoff := c.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		record.RequestAt = domain.TimeNow()
		if err := c.Validator.Validate(record, domain.TimeNow()); err != nil {
			return SyncResult{}, err
		}

		response, err := c.post(ctx, record)
		if err == nil {
			return c.acknowledge(record, response)
		}
		if !transient(err) {
			return SyncResult{}, err
		}

		lastErr = err
		logger.Logger().WithError(err).Warnf("submission attempt %d/%d failed", attempt, c.MaxAttempts)
		if attempt == c.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return SyncResult{}, fmt.Errorf("%w: %v", domain.ErrNetwork, lastErr)
}

func (c *Client) post(ctx context.Context, record domain.ConsentRecord) (api.SyncResponse, error) {
	body, err := json.Marshal(api.SyncRequest{
		ConsentString: string(record.Payload),
		Timestamp:     record.CreatedAt.UTC().Format(time.RFC3339),
		DeviceID:      record.SubjectID,
		StoredAt:      formatOptional(record.StoredAt),
		RequestAt:     record.RequestAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return api.SyncResponse{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerURL+api.SyncPath, bytes.NewReader(body))
	if err != nil {
		return api.SyncResponse{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.HTTPClient.Do(request)
	if err != nil {
		return api.SyncResponse{}, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode >= http.StatusInternalServerError {
		return api.SyncResponse{}, fmt.Errorf("%w: server returned %d", domain.ErrNetwork, httpResponse.StatusCode)
	}

	var response api.SyncResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&response); err != nil {
		return api.SyncResponse{}, fmt.Errorf("%w: undecodable response: %v", domain.ErrNetwork, err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		return api.SyncResponse{}, fmt.Errorf("submission rejected: %s", response.Message)
	}
	return response, nil
}

// acknowledge moves the local record to submitted and refreshes the
// offline decision cache. Runs only after the server confirmed receipt.
func (c *Client) acknowledge(record domain.ConsentRecord, response api.SyncResponse) (SyncResult, error) {
	record.State = domain.StateSubmitted
	if err := c.putRecord(record); err != nil {
		return SyncResult{}, err
	}

	validatedAt, err := time.Parse(time.RFC3339, response.ValidatedAt)
	if err != nil {
		logger.Logger().WithError(err).Warnf("server sent an unusable validatedAt %q, caching without it", response.ValidatedAt)
		validatedAt = time.Time{}
	}
	cached, err := json.Marshal(CachedDecision{
		Decision:    domain.Decision(response.Decision),
		ValidatedAt: validatedAt,
	})
	if err != nil {
		return SyncResult{}, err
	}
	if err := c.Store.Put([]byte(decisionKeyPrefix+record.SubjectID), cached); err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		Accepted:        response.Status == api.StatusSuccess,
		Decision:        domain.Decision(response.Decision),
		ServerTimestamp: validatedAt,
	}, nil
}

func (c *Client) putRecord(record domain.ConsentRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.Store.Put([]byte(consentKeyPrefix+record.SubjectID), raw)
}

func transient(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}

func formatOptional(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339)
}
