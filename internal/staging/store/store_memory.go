package store

import (
	"context"
	"sync"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

type originalKey struct {
	pkg        domain.PackageID
	kind       domain.EntityKind
	originalID string
}

// InMemory is the default staging store: mutex-guarded maps with a
// secondary index enforcing original-id uniqueness per package per kind.
type InMemory struct {
	mu       sync.RWMutex
	records  map[domain.RecordID]models.Record
	byOrig   map[originalKey]domain.RecordID
	byPkg    map[domain.PackageID]map[domain.EntityKind][]domain.RecordID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[domain.RecordID]models.Record),
		byOrig:  make(map[originalKey]domain.RecordID),
		byPkg:   make(map[domain.PackageID]map[domain.EntityKind][]domain.RecordID),
	}
}

func (s *InMemory) Add(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := rec.Meta()
	key := originalKey{pkg: meta.PackageID, kind: meta.Kind, originalID: meta.OriginalID}
	if _, taken := s.byOrig[key]; taken {
		return sentinel.ErrConflict
	}
	s.records[meta.ID] = rec
	s.byOrig[key] = meta.ID
	kinds := s.byPkg[meta.PackageID]
	if kinds == nil {
		kinds = make(map[domain.EntityKind][]domain.RecordID)
		s.byPkg[meta.PackageID] = kinds
	}
	kinds[meta.Kind] = append(kinds[meta.Kind], meta.ID)
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.RecordID) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec, nil
}

func (s *InMemory) FindByOriginalID(_ context.Context, pkgID domain.PackageID, kind domain.EntityKind, originalID string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrig[originalKey{pkg: pkgID, kind: kind, originalID: originalID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[id], nil
}

func (s *InMemory) ListByPackage(_ context.Context, pkgID domain.PackageID, kind domain.EntityKind) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPkg[pkgID][kind]
	out := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *InMemory) UpdateStatus(_ context.Context, id domain.RecordID, status models.ValidationStatus, issues []models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	meta := rec.Meta()
	meta.Status = status
	meta.Issues = append(meta.Issues, issues...)
	return nil
}

func (s *InMemory) SetApproval(_ context.Context, id domain.RecordID, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Meta().Approved = approved
	return nil
}

func (s *InMemory) SetCommittedID(_ context.Context, id domain.RecordID, entityID domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Meta().CommittedID = entityID
	return nil
}

func (s *InMemory) MarkMerged(_ context.Context, id domain.RecordID, masterEntityID domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	meta := rec.Meta()
	meta.Status = models.StatusSkipped
	meta.Approved = false
	if !masterEntityID.IsNil() {
		meta.CommittedID = masterEntityID
	}
	return nil
}

// RelinkReferences rewrites staged foreign keys under one lock, which makes
// the whole relink atomic with respect to every other store operation.
func (s *InMemory) RelinkReferences(_ context.Context, pkgID domain.PackageID, kind domain.EntityKind, fromOriginalID, toOriginalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kindIDs := range s.byPkg[pkgID] {
		for _, id := range kindIDs {
			relinkRecord(s.records[id], kind, fromOriginalID, toOriginalID)
		}
	}
	return nil
}

// relinkRecord moves any reference pointing at (kind, from) over to "to".
// Which fields count as references depends on the referencing record's kind.
func relinkRecord(rec models.Record, kind domain.EntityKind, from, to string) {
	switch r := rec.(type) {
	case *models.Relation:
		if kind == domain.KindPerson && r.PersonOriginalID == from {
			r.PersonOriginalID = to
		}
		if kind == domain.KindPropertyUnit && r.UnitOriginalID == from {
			r.UnitOriginalID = to
		}
	case *models.Evidence:
		if kind == domain.KindRelation && r.RelationOriginalID == from {
			r.RelationOriginalID = to
		}
	case *models.Claim:
		if kind == domain.KindPerson && r.ClaimantOriginalID == from {
			r.ClaimantOriginalID = to
		}
		if kind == domain.KindPropertyUnit && r.UnitOriginalID == from {
			r.UnitOriginalID = to
		}
	case *models.Household:
		if kind == domain.KindPerson && r.HeadPersonOriginalID == from {
			r.HeadPersonOriginalID = to
		}
	case *models.PropertyUnit:
		if kind == domain.KindBuilding && r.BuildingOriginalID == from {
			r.BuildingOriginalID = to
		}
	}
}
