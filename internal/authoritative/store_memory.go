package authoritative

import (
	"context"
	"strings"
	"sync"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// InMemory is the default authoritative store. It backs unit tests and
// single-node deployments; production wires the postgres implementation.
type InMemory struct {
	mu         sync.RWMutex
	persons    map[domain.EntityID]*Person
	buildings  map[domain.EntityID]*Building
	units      map[domain.EntityID]*PropertyUnit
	households map[domain.EntityID]*Household
	relations  map[domain.EntityID]*Relation
	evidence   map[domain.EntityID]*Evidence
	claims     map[domain.EntityID]*Claim
	surveys    map[domain.EntityID]*Survey
}

func NewInMemory() *InMemory {
	return &InMemory{
		persons:    make(map[domain.EntityID]*Person),
		buildings:  make(map[domain.EntityID]*Building),
		units:      make(map[domain.EntityID]*PropertyUnit),
		households: make(map[domain.EntityID]*Household),
		relations:  make(map[domain.EntityID]*Relation),
		evidence:   make(map[domain.EntityID]*Evidence),
		claims:     make(map[domain.EntityID]*Claim),
		surveys:    make(map[domain.EntityID]*Survey),
	}
}

func (s *InMemory) FindByNationalID(_ context.Context, nationalID string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.persons {
		if p.Active && strings.EqualFold(p.NationalID, nationalID) && nationalID != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) SearchByNamePrefix(_ context.Context, prefix string) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(prefix)
	var out []*Person
	for _, p := range s.persons {
		if p.Active && strings.HasPrefix(strings.ToLower(p.FamilyName), lower) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) GetPerson(_ context.Context, id domain.EntityID) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindUnitByCompositeKey(_ context.Context, buildingCode, unitIdentifier string) (*PropertyUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.units {
		if u.Active && u.BuildingCode == buildingCode && u.UnitIdentifier == unitIdentifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) GetUnit(_ context.Context, id domain.EntityID) (*PropertyUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) UpsertBuilding(_ context.Context, b Building) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.buildings {
		if existing.Code == b.Code {
			existing.Address = b.Address
			existing.Active = true
			return existing.ID, nil
		}
	}
	b.ID = domain.NewEntityID()
	b.Active = true
	s.buildings[b.ID] = &b
	return b.ID, nil
}

func (s *InMemory) UpsertUnit(_ context.Context, u PropertyUnit) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.units {
		if existing.BuildingCode == u.BuildingCode && existing.UnitIdentifier == u.UnitIdentifier {
			existing.Floor = u.Floor
			existing.Use = u.Use
			existing.Active = true
			return existing.ID, nil
		}
	}
	u.ID = domain.NewEntityID()
	u.Active = true
	s.units[u.ID] = &u
	return u.ID, nil
}

func (s *InMemory) UpsertPerson(_ context.Context, p Person) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.NationalID != "" {
		for _, existing := range s.persons {
			if strings.EqualFold(existing.NationalID, p.NationalID) {
				existing.FirstName = p.FirstName
				existing.FatherName = p.FatherName
				existing.FamilyName = p.FamilyName
				existing.Phone = p.Phone
				existing.BirthYear = p.BirthYear
				existing.Gender = p.Gender
				existing.Active = true
				return existing.ID, nil
			}
		}
	}
	p.ID = domain.NewEntityID()
	p.Active = true
	s.persons[p.ID] = &p
	return p.ID, nil
}

func (s *InMemory) CreateHousehold(_ context.Context, h Household) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = domain.NewEntityID()
	h.Active = true
	s.households[h.ID] = &h
	return h.ID, nil
}

func (s *InMemory) CreateRelation(_ context.Context, r Relation) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = domain.NewEntityID()
	r.Active = true
	s.relations[r.ID] = &r
	return r.ID, nil
}

func (s *InMemory) CreateEvidence(_ context.Context, e Evidence) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = domain.NewEntityID()
	e.Active = true
	s.evidence[e.ID] = &e
	return e.ID, nil
}

func (s *InMemory) CreateClaim(_ context.Context, c Claim) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = domain.NewEntityID()
	c.Active = true
	s.claims[c.ID] = &c
	return c.ID, nil
}

func (s *InMemory) CreateSurvey(_ context.Context, sv Survey) (domain.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv.ID = domain.NewEntityID()
	s.surveys[sv.ID] = &sv
	return sv.ID, nil
}

// MergePersons runs entirely under the write lock, so concurrent readers
// see either the pre-merge or post-merge state, never a partial relink.
func (s *InMemory) MergePersons(_ context.Context, masterID, discardedID domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	master, ok := s.persons[masterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	discarded, ok := s.persons[discardedID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !discarded.Active {
		return sentinel.ErrInvalidState
	}

	for _, r := range s.relations {
		if r.PersonID == discardedID {
			r.PersonID = master.ID
		}
	}
	for _, c := range s.claims {
		if c.ClaimantID == discardedID {
			c.ClaimantID = master.ID
		}
	}
	for _, h := range s.households {
		if h.HeadID == discardedID {
			h.HeadID = master.ID
		}
	}
	discarded.Active = false
	return nil
}

func (s *InMemory) MergeUnits(_ context.Context, masterID, discardedID domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	master, ok := s.units[masterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	discarded, ok := s.units[discardedID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !discarded.Active {
		return sentinel.ErrInvalidState
	}

	for _, r := range s.relations {
		if r.UnitID == discardedID {
			r.UnitID = master.ID
		}
	}
	for _, c := range s.claims {
		if c.UnitID == discardedID {
			c.UnitID = master.ID
		}
	}
	discarded.Active = false
	return nil
}

// SeedPerson inserts a person with a fixed id. Test helper.
func (s *InMemory) SeedPerson(p Person) domain.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsNil() {
		p.ID = domain.NewEntityID()
	}
	p.Active = true
	s.persons[p.ID] = &p
	return p.ID
}

// SeedUnit inserts a unit with a fixed id. Test helper.
func (s *InMemory) SeedUnit(u PropertyUnit) domain.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsNil() {
		u.ID = domain.NewEntityID()
	}
	u.Active = true
	s.units[u.ID] = &u
	return u.ID
}

// SeedRelation inserts a relation with a fixed id. Test helper.
func (s *InMemory) SeedRelation(r Relation) domain.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsNil() {
		r.ID = domain.NewEntityID()
	}
	r.Active = true
	s.relations[r.ID] = &r
	return r.ID
}

// RelationsOf lists active relations held by a person. Test helper.
func (s *InMemory) RelationsOf(personID domain.EntityID) []Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Relation
	for _, r := range s.relations {
		if r.PersonID == personID {
			out = append(out, *r)
		}
	}
	return out
}
