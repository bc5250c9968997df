package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veysel440/go-ledger/internal/core"
)

type RollbackResult struct {
	CaseID        string `json:"caseId"`
	ActiveEventID string `json:"activeEventId"`
	// AuditEvent is set when rollbacks are themselves recorded.
	AuditEvent *core.AuditEvent `json:"auditEvent,omitempty"`
}

// RollbackTo makes targetID the last active event of the case: it and every
// earlier event become active, every later one inactive. Nothing is deleted
// and no hashed field changes.
func (s *Service) RollbackTo(ctx context.Context, caseID, targetID string, actor core.Actor) (RollbackResult, error) {
	ctx, span := s.span(ctx, "ledger.RollbackTo", caseID)
	defer span.End()

	target, err := s.store.Get(ctx, targetID)
	if errors.Is(err, ErrNotFound) {
		return RollbackResult{}, fmt.Errorf("%w: event %s does not exist", ErrInvalidTarget, targetID)
	}
	if err != nil {
		return RollbackResult{}, fmt.Errorf("load rollback target: %w", err)
	}
	if caseID == "" || target.CaseID != caseID {
		return RollbackResult{}, fmt.Errorf("%w: event %s is not in case %s", ErrInvalidTarget, targetID, caseID)
	}

	unlock, err := s.locks.Lock(ctx, caseID)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("lock case %s: %w", caseID, err)
	}
	defer unlock()

	if err := s.store.SetActiveThrough(ctx, caseID, target.CreatedAt); err != nil {
		span.RecordError(err)
		return RollbackResult{}, fmt.Errorf("apply rollback: %w", err)
	}
	s.metrics.RolledBack()
	s.log.Info("rollback_applied", "caseId", caseID, "activeEventId", target.ID, "by", actor.UserID)

	out := RollbackResult{CaseID: caseID, ActiveEventID: target.ID}
	if !s.auditRollbacks {
		return out, nil
	}
	reg, err := s.appendLocked(ctx, core.RegisterEvent{
		CaseID: caseID,
		Action: core.NewAction(core.ControlPayload{
			Operation: "rollback",
			Target:    target.ID,
			Params:    map[string]any{"targetSeq": target.Seq},
		}),
		Confirmation: core.Confirmation{ConfirmedByUser: true, ConfirmedAt: s.now()},
		Actor:        actor,
		Result:       core.Result{OK: true, Summary: "rolled back to " + target.ID, RefID: target.ID},
	})
	if err != nil {
		return out, fmt.Errorf("record rollback: %w", err)
	}
	out.AuditEvent = reg.Event
	return out, nil
}
