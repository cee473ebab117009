/*
 *  Consent sync service tracks the lineage of consent decisions
 *  Copyright (C) 2021 Consent lineage community
 *
 *  This program is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License
 *  along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package engine implements the server-side validity engine: it
// reconciles a submitted consent record against the authoritative copy,
// applies the expiration and scope policy, and turns the outcome into an
// access decision plus exactly one lineage log entry.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	eh "github.com/looplab/eventhorizon"

	"github.com/consent-lineage/consent-sync-service/domain"
	"github.com/consent-lineage/consent-sync-service/domain/events"
	"github.com/consent-lineage/consent-sync-service/lineage"
	"github.com/consent-lineage/consent-sync-service/pkg/logger"
	"github.com/consent-lineage/consent-sync-service/policy"
	"github.com/consent-lineage/consent-sync-service/store"
)

const actorServer = "server"

const ResultGranted = "Access granted"
const ResultDenied = "Access denied"
const ResultExpired = "Access denied: consent expired, re-consent required"
const ResultDuplicate = "Duplicate submission"

// Result is what the engine hands back to the transport for one
// submission attempt.
type Result struct {
	Decision domain.Decision
	Record   domain.ConsentRecord
	LoggedAt time.Time
	// Duplicate marks a retransmission that was answered from the
	// cached decision without touching the authoritative record.
	Duplicate bool
	// Reconsent marks an expired record: the decision is denied and the
	// client has to capture a fresh consent.
	Reconsent bool
}

// EventPublisher is the slice of the event bus the engine publishes
// applied transitions to. The local event bus satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event eh.Event) error
}

// Engine serializes all transitions per subject and never blocks on
// anything but its store and log collaborators. Publisher is optional;
// when set, every applied transition is also published as an event for
// observers.
type Engine struct {
	Validator domain.TimestampValidator
	Store     store.Authoritative
	Dedup     store.DedupCache
	Matrix    policy.ScopeMatrix
	Log       lineage.Log
	Publisher EventPublisher

	// DefaultValidity, when non-zero, assigns expires_at =
	// created_at + DefaultValidity to records that arrive without a
	// server-side expiry. The client never supplies expires_at.
	DefaultValidity time.Duration
	DedupTTL        time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(authoritative store.Authoritative, dedup store.DedupCache, matrix policy.ScopeMatrix, log lineage.Log) *Engine {
	return &Engine{
		Validator: domain.NewTimestampValidator(),
		Store:     authoritative,
		Dedup:     dedup,
		Matrix:    matrix,
		Log:       log,
		DedupTTL:  store.DefaultDedupTTL,
	}
}

// subjectLock returns the critical section for one subject. Distinct
// subjects proceed fully in parallel.
func (e *Engine) subjectLock(subjectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = map[string]*sync.Mutex{}
	}
	lock, ok := e.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[subjectID] = lock
	}
	return lock
}

// Receive runs one submission attempt through the state machine:
// timestamp validation, reconciliation, duplicate detection, expiration,
// scope check, and finally persistence of the new authoritative record.
// Rejections (invalid timestamps, missing fields, superseded records)
// come back as errors; denied decisions from expiry or the scope matrix
// are normal results. Every attempt appends exactly one lineage entry.
func (e *Engine) Receive(ctx context.Context, record domain.ConsentRecord, requestedScopes []string) (Result, error) {
	if record.SubjectID == "" || len(record.Payload) == 0 || record.CreatedAt.IsZero() {
		e.append(ctx, events.ConsentRejected, record, priorState(record), domain.StateRejected, "", ResultDenied, "missing required fields")
		return Result{}, domain.ErrMissingField
	}

	lock := e.subjectLock(record.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	now := domain.TimeNow()

	// The client cannot assign its own expiry.
	record.ExpiresAt = time.Time{}

	if err := e.Validator.Validate(record, now); err != nil {
		e.append(ctx, events.ConsentRejected, record, priorState(record), domain.StateRejected, "", ResultDenied, err.Error())
		return Result{}, err
	}

	authoritative, exists, err := e.Store.Load(ctx, record.SubjectID)
	if err != nil {
		return Result{}, err
	}

	// Reconciliation comes before duplicate detection: a replay of a
	// record that has since been superseded rejects as superseded, it is
	// not answered from the attempt cache.
	if exists {
		if authoritative.CreatedAt.After(record.CreatedAt) {
			e.append(ctx, events.ConsentSuperseded, record, priorState(record), domain.StateRejected, "", ResultDenied, "superseded by newer record")
			return Result{}, domain.ErrSuperseded
		}
		if authoritative.CreatedAt.Equal(record.CreatedAt) {
			// Same record, different attempt: the first writer won the
			// reconciliation. Answer from the authoritative decision.
			e.append(ctx, events.ConsentDuplicate, record, authoritative.State, authoritative.State, authoritative.Decision, ResultDuplicate, "")
			return Result{Decision: authoritative.Decision, Record: authoritative, LoggedAt: now, Duplicate: true}, nil
		}
	}

	// The attempt cache catches exact retransmissions whose outcome never
	// produced an authoritative copy, still before any further log append.
	attemptKey := record.AttemptKey()
	if decision, seen, err := e.Dedup.Get(ctx, attemptKey); err != nil {
		return Result{}, err
	} else if seen {
		e.append(ctx, events.ConsentDuplicate, record, priorState(record), record.State, decision, ResultDuplicate, "")
		return Result{Decision: decision, Record: record, LoggedAt: now, Duplicate: true}, nil
	}

	if e.DefaultValidity > 0 {
		record.ExpiresAt = record.CreatedAt.Add(e.DefaultValidity)
	}

	arrivalState := priorState(record)

	if !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(now) {
		record.State = domain.StateExpired
		record.Decision = domain.DecisionDenied
		record.ValidatedAt = now
		if err := e.finish(ctx, events.ConsentExpired, record, arrivalState, attemptKey, ResultExpired); err != nil {
			return Result{}, err
		}
		return Result{Decision: domain.DecisionDenied, Record: record, LoggedAt: now, Reconsent: true}, nil
	}

	decision, err := e.Matrix.Evaluate(record.Payload, requestedScopes)
	if err != nil {
		e.append(ctx, events.ConsentRejected, record, arrivalState, domain.StateRejected, "", ResultDenied, err.Error())
		return Result{}, fmt.Errorf("%w: %v", domain.ErrValidityCheckFailed, err)
	}

	record.State = domain.StateValidated
	record.Decision = decision
	record.ValidatedAt = now

	result := ResultGranted
	if decision != domain.DecisionGranted {
		result = ResultDenied
	}
	if err := e.finish(ctx, events.ConsentValidated, record, arrivalState, attemptKey, result); err != nil {
		return Result{}, err
	}
	return Result{Decision: decision, Record: record, LoggedAt: now}, nil
}

// priorState is the state a record was in when its submission arrived.
// A record that never made it through capture has no state yet.
func priorState(record domain.ConsentRecord) domain.State {
	if record.State == "" {
		return domain.StateCreated
	}
	return record.State
}

// Authoritative returns the current server-side record for a subject.
func (e *Engine) Authoritative(ctx context.Context, subjectID string) (domain.ConsentRecord, bool, error) {
	lock := e.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()
	return e.Store.Load(ctx, subjectID)
}

// finish persists the decided record as the new authoritative copy,
// remembers the attempt and appends the lineage entry, all inside the
// caller's critical section.
func (e *Engine) finish(ctx context.Context, transition eh.EventType, record domain.ConsentRecord, fromState domain.State, attemptKey, result string) error {
	if err := e.Store.Save(ctx, record); err != nil {
		return err
	}
	if err := e.Dedup.Set(ctx, attemptKey, record.Decision, e.DedupTTL); err != nil {
		return err
	}
	e.append(ctx, transition, record, fromState, record.State, record.Decision, result, "")
	return nil
}

func (e *Engine) append(ctx context.Context, transition eh.EventType, record domain.ConsentRecord, fromState, toState domain.State, decision domain.Decision, result, reason string) {
	now := domain.TimeNow()
	entry := lineage.Entry{
		SubjectID:     record.SubjectID,
		Transition:    string(transition),
		FromState:     string(fromState),
		ToState:       string(toState),
		Timestamp:     now,
		Actor:         actorServer,
		UserID:        record.SubjectID,
		ConsentString: string(record.Payload),
		RequestAt:     record.RequestAt,
		ValidatedAt:   record.ValidatedAt,
		Result:        result,
	}
	if err := e.Log.Append(ctx, entry); err != nil {
		logger.Logger().WithError(err).Error("could not append lineage entry")
	}

	if e.Publisher == nil {
		return
	}
	event := eh.NewEventForAggregate(transition, &events.TransitionData{
		SubjectID:   record.SubjectID,
		FromState:   entry.FromState,
		ToState:     entry.ToState,
		Decision:    string(decision),
		Reason:      reason,
		CreatedAt:   record.CreatedAt,
		RequestAt:   record.RequestAt,
		ValidatedAt: record.ValidatedAt,
		OccurredAt:  now,
	}, now, events.ConsentAggregateType, domain.SubjectUUID(record.SubjectID), 0)
	if err := e.Publisher.PublishEvent(ctx, event); err != nil {
		logger.Logger().WithError(err).Error("could not publish transition event")
	}
}
