package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veysel440/go-ledger/internal/core"
)

// fixedStore serves a constant event list; only Events is exercised.
type fixedStore struct {
	Store
	events []core.AuditEvent
}

func (f fixedStore) Events(context.Context, string) ([]core.AuditEvent, error) {
	return f.events, nil
}

func threeEvents() []core.AuditEvent {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return []core.AuditEvent{
		{ID: "e1", CaseID: "C1", CreatedAt: t0},
		{ID: "e2", CaseID: "C1", CreatedAt: t0.Add(time.Second)},
		{ID: "e3", CaseID: "C1", CreatedAt: t0.Add(2 * time.Second)},
	}
}

func TestBuildTimeline_VerificationUnavailable(t *testing.T) {
	s := New(fixedStore{events: threeEvents()}, nil)
	s.verify = func(context.Context, string) (VerifyResult, error) {
		return VerifyResult{}, errors.New("store down")
	}

	tl, err := s.BuildTimeline(context.Background(), "C1")
	require.NoError(t, err)
	assert.False(t, tl.Verification.Available)
	assert.False(t, tl.Verification.OK)
	assert.Nil(t, tl.Verification.BrokenAt)
	assert.Equal(t, "store down", tl.Verification.Error)
	require.Len(t, tl.Entries, 3)
	for _, e := range tl.Entries {
		assert.Equal(t, IntegrityUnverified, e.Integrity)
		assert.Equal(t, RiskWarning, e.RiskLevel)
	}
}

func TestBuildTimeline_EventsAppendedAfterVerification(t *testing.T) {
	s := New(fixedStore{events: threeEvents()}, nil)
	s.verify = func(context.Context, string) (VerifyResult, error) {
		return VerifyResult{CaseID: "C1", OK: true, Checked: 2, Total: 2}, nil
	}

	tl, err := s.BuildTimeline(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, IntegrityOK, tl.Entries[0].Integrity)
	assert.Equal(t, IntegrityOK, tl.Entries[1].Integrity)
	assert.Equal(t, IntegrityUnverified, tl.Entries[2].Integrity)
}

func TestClassify(t *testing.T) {
	broken := "e2"
	res := VerifyResult{OK: false, BrokenAt: &broken, Checked: 1}

	assert.Equal(t, IntegrityOK, classify(0, "e1", res))
	assert.Equal(t, IntegrityBroken, classify(1, "e2", res))
	assert.Equal(t, IntegrityUnverified, classify(2, "e3", res))
}
