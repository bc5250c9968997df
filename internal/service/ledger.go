package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veysel440/go-ledger/internal/chain"
	"github.com/Veysel440/go-ledger/internal/core"
)

// Reasons a registration is not recorded.
const (
	ReasonMissingCase  = "missing_case_id"
	ReasonMissingKind  = "missing_action_kind"
	ReasonNotConfirmed = "not_confirmed"
)

// Registration is the outcome of RegisterEvent. Recorded=false with a Reason
// is a normal result, not an error.
type Registration struct {
	Recorded  bool             `json:"recorded"`
	Duplicate bool             `json:"duplicate,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Event     *core.AuditEvent `json:"event,omitempty"`
}

// RegisterEvent appends a confirmed action to its case chain. Unconfirmed or
// incomplete input is not recorded and nothing is persisted.
func (s *Service) RegisterEvent(ctx context.Context, in core.RegisterEvent) (Registration, error) {
	if reason := rejectReason(in); reason != "" {
		s.metrics.NotRecorded(reason)
		s.log.Info("event_not_recorded", "caseId", in.CaseID, "reason", reason)
		return Registration{Reason: reason}, nil
	}
	if !in.Action.Kind.Valid() {
		return Registration{}, fmt.Errorf("%w: unknown action kind %q", ErrValidation, in.Action.Kind)
	}
	if in.Action.Payload != nil && in.Action.Payload.Kind() != in.Action.Kind {
		return Registration{}, fmt.Errorf("%w: payload does not match kind %q", ErrValidation, in.Action.Kind)
	}

	ctx, span := s.span(ctx, "ledger.RegisterEvent", in.CaseID)
	defer span.End()

	unlock, err := s.locks.Lock(ctx, in.CaseID)
	if err != nil {
		return Registration{}, fmt.Errorf("lock case %s: %w", in.CaseID, err)
	}
	defer unlock()

	reg, err := s.appendLocked(ctx, in)
	if err != nil {
		span.RecordError(err)
		return Registration{}, err
	}
	return reg, nil
}

func rejectReason(in core.RegisterEvent) string {
	switch {
	case in.CaseID == "":
		return ReasonMissingCase
	case in.Action.Kind == "":
		return ReasonMissingKind
	case !in.Confirmation.ConfirmedByUser:
		return ReasonNotConfirmed
	}
	return ""
}

// appendLocked runs read tip -> hash -> persist. The caller holds the case lock;
// ErrConflict from the store means another process extended the chain, so
// the tip is read again.
func (s *Service) appendLocked(ctx context.Context, in core.RegisterEvent) (Registration, error) {
	var lastErr error
	for attempt := 0; attempt < s.appendAttempts; attempt++ {
		if in.IdemHash != "" {
			prev, ok, err := s.store.FindByIdem(ctx, in.IdemHash)
			if err != nil {
				return Registration{}, fmt.Errorf("idempotency lookup: %w", err)
			}
			if ok && prev.CaseID != in.CaseID {
				return Registration{}, fmt.Errorf("%w: key recorded event %s of case %s", ErrIdempotencyReused, prev.ID, prev.CaseID)
			}
			if ok {
				return Registration{Recorded: true, Duplicate: true, Event: &prev}, nil
			}
		}

		ev, err := s.nextEvent(ctx, in)
		if err != nil {
			return Registration{}, err
		}
		err = s.store.Append(ctx, ev)
		if err == nil {
			s.metrics.Registered(string(ev.Action.Kind))
			s.log.Info("event_registered",
				"id", ev.ID, "caseId", ev.CaseID, "kind", ev.Action.Kind, "seq", ev.Seq, "hash", ev.Hash)
			return Registration{Recorded: true, Event: &ev}, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Registration{}, fmt.Errorf("append event: %w", err)
		}
		s.metrics.Conflict()
		s.log.Warn("append_conflict", "caseId", in.CaseID, "attempt", attempt+1)
		lastErr = err
	}
	return Registration{}, fmt.Errorf("append event after %d attempts: %w", s.appendAttempts, lastErr)
}

func (s *Service) nextEvent(ctx context.Context, in core.RegisterEvent) (core.AuditEvent, error) {
	tip, ok, err := s.store.Tip(ctx, in.CaseID)
	if err != nil {
		return core.AuditEvent{}, fmt.Errorf("read chain tip: %w", err)
	}
	prevHash, seq := chain.Genesis, int64(1)
	createdAt := core.Timestamp(s.now())
	if ok {
		prevHash, seq = tip.Hash, tip.Seq+1
		// createdAt is the chain order, so it must move strictly forward.
		if !createdAt.After(tip.CreatedAt) {
			createdAt = core.Timestamp(tip.CreatedAt.Add(time.Millisecond))
		}
	}

	ev := core.AuditEvent{
		ID:           s.newID(),
		CaseID:       in.CaseID,
		ChatID:       in.ChatID,
		Action:       in.Action,
		Confirmation: in.Confirmation.Normalized(),
		Actor:        in.Actor,
		Result:       in.Result,
		PrevHash:     prevHash,
		Seq:          seq,
		CreatedAt:    createdAt,
		IsActive:     true,
		IdemHash:     in.IdemHash,
	}
	ev.Hash, err = chain.EventHash(ev, prevHash)
	if err != nil {
		return core.AuditEvent{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ev, nil
}
