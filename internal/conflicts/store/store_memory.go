package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

type pairKey struct {
	pkg  domain.PackageID
	pair string
}

// InMemory is the default conflict store: mutex-guarded maps with a
// secondary index enforcing one conflict per (package, unordered pair).
type InMemory struct {
	mu        sync.RWMutex
	conflicts map[domain.ConflictID]*models.Conflict
	byPair    map[pairKey]domain.ConflictID
}

func NewInMemory() *InMemory {
	return &InMemory{
		conflicts: make(map[domain.ConflictID]*models.Conflict),
		byPair:    make(map[pairKey]domain.ConflictID),
	}
}

func (s *InMemory) CreateIfAbsent(_ context.Context, c *models.Conflict) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{pkg: c.PackageID, pair: c.PairKey()}
	if _, exists := s.byPair[key]; exists {
		return false, nil
	}
	copied := *c
	s.conflicts[c.ID] = &copied
	s.byPair[key] = c.ID
	return true, nil
}

func (s *InMemory) Get(_ context.Context, id domain.ConflictID) (*models.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemory) Update(_ context.Context, c *models.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conflicts[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *c
	s.conflicts[c.ID] = &copied
	return nil
}

func (s *InMemory) List(_ context.Context, f Filter) ([]*models.Conflict, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Conflict, 0)
	for _, c := range s.conflicts {
		if !matches(c, f) {
			continue
		}
		copied := *c
		matched = append(matched, &copied)
	}
	sortQueue(matched)

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *InMemory) CountOpen(_ context.Context, pkgID domain.PackageID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.conflicts {
		if c.PackageID == pkgID && c.Status.Open() {
			n++
		}
	}
	return n, nil
}

func matches(c *models.Conflict, f Filter) bool {
	if !f.PackageID.IsNil() && c.PackageID != f.PackageID {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Outcome != "" && c.Outcome != f.Outcome {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.Assignee != "" && c.Assignee != f.Assignee {
		return false
	}
	if f.Escalated != nil && c.Escalated != *f.Escalated {
		return false
	}
	if f.OverdueAt != nil && !c.Overdue(*f.OverdueAt) {
		return false
	}
	return true
}

// sortQueue orders the review queue: high priority first, earliest SLA
// deadline next, oldest creation last.
func sortQueue(list []*models.Conflict) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority.Less(b.Priority)
		}
		if !a.SLADeadline.Equal(b.SLADeadline) {
			return a.SLADeadline.Before(b.SLADeadline)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
