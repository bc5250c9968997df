package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Veysel440/go-ledger/internal/core"
)

type Integrity string

const (
	IntegrityOK         Integrity = "ok"
	IntegrityBroken     Integrity = "broken"
	IntegrityUnverified Integrity = "unverified"
)

type RiskLevel string

const (
	RiskOK       RiskLevel = "ok"
	RiskWarning  RiskLevel = "warning"
	RiskCritical RiskLevel = "critical"
)

func riskOf(i Integrity) RiskLevel {
	switch i {
	case IntegrityBroken:
		return RiskCritical
	case IntegrityUnverified:
		return RiskWarning
	}
	return RiskOK
}

type TimelineEntry struct {
	core.AuditEvent
	Integrity Integrity `json:"integrity"`
	RiskLevel RiskLevel `json:"riskLevel"`
}

// TimelineVerification summarizes the verifier run behind a timeline.
// Available=false means verification could not run, which is distinct from a
// broken chain.
type TimelineVerification struct {
	Available bool    `json:"available"`
	OK        bool    `json:"ok"`
	BrokenAt  *string `json:"brokenAt"`
	Error     string  `json:"error,omitempty"`
}

type Timeline struct {
	CaseID       string               `json:"caseId"`
	Verification TimelineVerification `json:"verification"`
	Entries      []TimelineEntry      `json:"entries"`
}

// BuildTimeline returns every event of the case in chain order, active or
// not, annotated with its integrity and risk level. Loading the events and
// verifying the chain run concurrently.
func (s *Service) BuildTimeline(ctx context.Context, caseID string) (Timeline, error) {
	ctx, span := s.span(ctx, "ledger.BuildTimeline", caseID)
	defer span.End()

	var (
		events    []core.AuditEvent
		res       VerifyResult
		verifyErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.store.Events(gctx, caseID)
		return err
	})
	g.Go(func() error {
		// A verification failure degrades the timeline instead of failing it.
		res, verifyErr = s.verify(gctx, caseID)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Timeline{}, fmt.Errorf("load timeline %s: %w", caseID, err)
	}

	tl := Timeline{CaseID: caseID, Entries: make([]TimelineEntry, 0, len(events))}
	if verifyErr != nil {
		s.log.Warn("verification_unavailable", "caseId", caseID, "err", verifyErr)
		tl.Verification = TimelineVerification{Error: verifyErr.Error()}
	} else {
		tl.Verification = TimelineVerification{Available: true, OK: res.OK, BrokenAt: res.BrokenAt}
	}

	for i, ev := range events {
		integrity := IntegrityUnverified
		if verifyErr == nil {
			integrity = classify(i, ev.ID, res)
		}
		tl.Entries = append(tl.Entries, TimelineEntry{
			AuditEvent: ev,
			Integrity:  integrity,
			RiskLevel:  riskOf(integrity),
		})
	}
	return tl, nil
}

// classify places the event at position i relative to the verifier run. Both
// reads see a prefix of the same append-only sequence, so positions agree;
// events beyond what the verifier saw are unverified.
func classify(i int, id string, res VerifyResult) Integrity {
	switch {
	case res.BrokenAt != nil && *res.BrokenAt == id:
		return IntegrityBroken
	case i < res.Checked:
		return IntegrityOK
	}
	return IntegrityUnverified
}
