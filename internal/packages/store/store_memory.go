package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// InMemory is the default package store.
type InMemory struct {
	mu       sync.RWMutex
	packages map[domain.PackageID]*models.ImportPackage
	daySeq   map[string]int
}

func NewInMemory() *InMemory {
	return &InMemory{
		packages: make(map[domain.PackageID]*models.ImportPackage),
		daySeq:   make(map[string]int),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.ImportPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.packages[p.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := clonePackage(p)
	s.packages[p.ID] = copied
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.PackageID) (*models.ImportPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePackage(p), nil
}

func (s *InMemory) Update(_ context.Context, p *models.ImportPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.packages[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	copied := clonePackage(p)
	// Status and CompletedAt only move through Transition.
	copied.Status = existing.Status
	copied.CompletedAt = existing.CompletedAt
	s.packages[p.ID] = copied
	return nil
}

func (s *InMemory) Transition(_ context.Context, id domain.PackageID, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status != from {
		return sentinel.ErrInvalidState
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	if to.Terminal() {
		p.CompletedAt = p.UpdatedAt
	}
	return nil
}

func (s *InMemory) List(_ context.Context, f Filter) ([]*models.ImportPackage, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.ImportPackage, 0)
	for _, p := range s.packages {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Source != "" && p.Source != f.Source {
			continue
		}
		matched = append(matched, clonePackage(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

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

func (s *InMemory) NextSequence(_ context.Context, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := day.Format("20060102")
	s.daySeq[key]++
	return s.daySeq[key], nil
}

func clonePackage(p *models.ImportPackage) *models.ImportPackage {
	copied := *p
	if p.RecordCounts != nil {
		copied.RecordCounts = make(map[domain.EntityKind]int, len(p.RecordCounts))
		for k, v := range p.RecordCounts {
			copied.RecordCounts[k] = v
		}
	}
	copied.Notes = append([]string(nil), p.Notes...)
	return &copied
}
