package service

import (
	"time"

	"github.com/Veysel440/go-ledger/internal/core"
)

type ListFilter struct {
	CaseID, ActorID string
	Kind            core.ActionKind
	Active          *bool
	Since, Until    *time.Time
	Limit, Offset   int64
}

// Normalize applies sane defaults and bounds
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Match reports whether ev passes every set field of f. Stores without a
// query language filter with it.
func (f ListFilter) Match(ev core.AuditEvent) bool {
	if f.CaseID != "" && ev.CaseID != f.CaseID {
		return false
	}
	if f.ActorID != "" && ev.Actor.UserID != f.ActorID {
		return false
	}
	if f.Kind != "" && ev.Action.Kind != f.Kind {
		return false
	}
	if f.Active != nil && ev.IsActive != *f.Active {
		return false
	}
	if f.Since != nil && ev.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && ev.CreatedAt.After(*f.Until) {
		return false
	}
	return true
}
