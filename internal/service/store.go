package service

import (
	"context"
	"errors"
	"time"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/lock"
)

var (
	ErrNotFound      = errors.New("not_found")
	ErrValidation    = errors.New("validation")
	ErrConflict      = errors.New("chain_conflict")
	ErrInvalidTarget = errors.New("invalid_target")
)

// ErrIdempotencyReused means the key already recorded an event of another case.
var ErrIdempotencyReused = errors.New("idempotency_key_reused")

// Store is the persistence collaborator. Implementations must reject a second
// event with the same (caseId, prevHash) or the same non-empty idemHash with
// ErrConflict, and return case events ordered by createdAt ascending.
type Store interface {
	Append(ctx context.Context, ev core.AuditEvent) error
	Tip(ctx context.Context, caseID string) (core.AuditEvent, bool, error)
	Events(ctx context.Context, caseID string) ([]core.AuditEvent, error)
	Get(ctx context.Context, id string) (core.AuditEvent, error)
	FindByIdem(ctx context.Context, idemHash string) (core.AuditEvent, bool, error)
	List(ctx context.Context, f ListFilter) ([]core.AuditEvent, error)
	// SetActiveThrough marks events of caseID created at or before cutoff
	// active and the rest inactive. No other field may change.
	SetActiveThrough(ctx context.Context, caseID string, cutoff time.Time) error
}

// Locker provides the per-case lock domain shared by appends and rollbacks.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
}
