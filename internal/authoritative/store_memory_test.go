package authoritative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

func TestFindByNationalID(t *testing.T) {
	s := NewInMemory()
	id := s.SeedPerson(Person{NationalID: "01234567890", FirstName: "Ahmad"})

	p, err := s.FindByNationalID(context.Background(), "01234567890")
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	_, err = s.FindByNationalID(context.Background(), "99999999999")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.FindByNationalID(context.Background(), "")
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "empty id never matches")
}

func TestSearchByNamePrefix(t *testing.T) {
	s := NewInMemory()
	s.SeedPerson(Person{FamilyName: "Haddad"})
	s.SeedPerson(Person{FamilyName: "Hamwi"})
	s.SeedPerson(Person{FamilyName: "Najjar"})

	out, err := s.SearchByNamePrefix(context.Background(), "ha")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestUpsertPersonIdempotentOnNationalID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.UpsertPerson(ctx, Person{NationalID: "01234567890", FirstName: "Ahmad"})
	require.NoError(t, err)

	second, err := s.UpsertPerson(ctx, Person{NationalID: "01234567890", FirstName: "Ahmed"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	p, err := s.GetPerson(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", p.FirstName, "upsert refreshes fields")

	// No national id means no natural key; a new entity every time.
	a, err := s.UpsertPerson(ctx, Person{FirstName: "Yusuf"})
	require.NoError(t, err)
	b, err := s.UpsertPerson(ctx, Person{FirstName: "Yusuf"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUpsertUnitIdempotentOnCompositeKey(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.UpsertUnit(ctx, PropertyUnit{BuildingCode: "01020300100200001", UnitIdentifier: "A-12", Floor: 1})
	require.NoError(t, err)
	second, err := s.UpsertUnit(ctx, PropertyUnit{BuildingCode: "01020300100200001", UnitIdentifier: "A-12", Floor: 3})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	u, err := s.GetUnit(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 3, u.Floor)
}

func TestMergePersonsRelinks(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	master := s.SeedPerson(Person{FirstName: "Ahmad"})
	discarded := s.SeedPerson(Person{FirstName: "Ahmed"})
	s.SeedRelation(Relation{PersonID: discarded, RelationType: "ownership"})

	require.NoError(t, s.MergePersons(ctx, master, discarded))

	p, err := s.GetPerson(ctx, discarded)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Len(t, s.RelationsOf(master), 1)
	assert.Empty(t, s.RelationsOf(discarded))

	// A second merge of the same discarded person is rejected.
	err = s.MergePersons(ctx, master, discarded)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestMergeUnits(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	master := s.SeedUnit(PropertyUnit{BuildingCode: "01020300100200001", UnitIdentifier: "A-12"})
	discarded := s.SeedUnit(PropertyUnit{BuildingCode: "01020300100200001", UnitIdentifier: "A-12b"})
	person := s.SeedPerson(Person{FirstName: "Ahmad"})
	s.SeedRelation(Relation{PersonID: person, UnitID: discarded})

	require.NoError(t, s.MergeUnits(ctx, master, discarded))

	u, err := s.GetUnit(ctx, discarded)
	require.NoError(t, err)
	assert.False(t, u.Active)

	relations := s.RelationsOf(person)
	require.Len(t, relations, 1)
	assert.Equal(t, master, relations[0].UnitID)

	err = s.MergeUnits(ctx, master, domain.NewEntityID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
