// Package memory is a process-local Store for tests and single-node
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/service"
)

type Store struct {
	mu     sync.RWMutex
	byID   map[string]core.AuditEvent
	cases  map[string][]string // ids in append order
	links  map[string]struct{} // caseId + "\x00" + prevHash
	byIdem map[string]string
}

func New() *Store {
	return &Store{
		byID:   map[string]core.AuditEvent{},
		cases:  map[string][]string{},
		links:  map[string]struct{}{},
		byIdem: map[string]string{},
	}
}

func linkKey(caseID, prevHash string) string { return caseID + "\x00" + prevHash }

func (s *Store) Append(_ context.Context, ev core.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := linkKey(ev.CaseID, ev.PrevHash)
	if _, ok := s.links[lk]; ok {
		return service.ErrConflict
	}
	if _, ok := s.byID[ev.ID]; ok {
		return service.ErrConflict
	}
	if ev.IdemHash != "" {
		if _, ok := s.byIdem[ev.IdemHash]; ok {
			return service.ErrConflict
		}
		s.byIdem[ev.IdemHash] = ev.ID
	}
	s.links[lk] = struct{}{}
	s.byID[ev.ID] = ev.Clone()
	s.cases[ev.CaseID] = append(s.cases[ev.CaseID], ev.ID)
	return nil
}

func (s *Store) Tip(_ context.Context, caseID string) (core.AuditEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.caseEvents(caseID)
	if len(evs) == 0 {
		return core.AuditEvent{}, false, nil
	}
	return evs[len(evs)-1], true, nil
}

func (s *Store) Events(_ context.Context, caseID string) ([]core.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caseEvents(caseID), nil
}

// caseEvents returns deep copies ordered by createdAt, then seq.
func (s *Store) caseEvents(caseID string) []core.AuditEvent {
	ids := s.cases[caseID]
	out := make([]core.AuditEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (s *Store) Get(_ context.Context, id string) (core.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.byID[id]
	if !ok {
		return core.AuditEvent{}, service.ErrNotFound
	}
	return ev.Clone(), nil
}

func (s *Store) FindByIdem(_ context.Context, idemHash string) (core.AuditEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdem[idemHash]
	if !ok {
		return core.AuditEvent{}, false, nil
	}
	return s.byID[id].Clone(), true, nil
}

// List returns matches newest first, like the other stores.
func (s *Store) List(_ context.Context, f service.ListFilter) ([]core.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []core.AuditEvent
	for _, ev := range s.byID {
		if f.Match(ev) {
			all = append(all, ev.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if f.Offset >= int64(len(all)) {
		return []core.AuditEvent{}, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && int64(len(all)) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (s *Store) SetActiveThrough(_ context.Context, caseID string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.cases[caseID] {
		ev := s.byID[id]
		ev.IsActive = !ev.CreatedAt.After(cutoff)
		s.byID[id] = ev
	}
	return nil
}

// Overwrite replaces a stored record verbatim, bypassing every chain rule.
// It stands in for a direct edit of the underlying storage.
func (s *Store) Overwrite(ev core.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ev.ID]; ok {
		s.byID[ev.ID] = ev.Clone()
	}
}

// Len is the total number of stored events across all cases.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
