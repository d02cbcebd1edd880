package domain

import "fmt"

// EntityKind tags the eight staged entity kinds handled by the import
// pipeline. The tag doubles as the storage key for the kind-keyed staging
// store and as the discriminator on conflicts and reports.
type EntityKind string

const (
	KindBuilding     EntityKind = "building"
	KindPropertyUnit EntityKind = "property_unit"
	KindPerson       EntityKind = "person"
	KindHousehold    EntityKind = "household"
	KindRelation     EntityKind = "relation"
	KindEvidence     EntityKind = "evidence"
	KindClaim        EntityKind = "claim"
	KindSurvey       EntityKind = "survey"
)

// EntityKinds lists all kinds in commit order: structural entities first so
// later kinds can reference earlier ones by committed id.
func EntityKinds() []EntityKind {
	return []EntityKind{
		KindBuilding,
		KindPropertyUnit,
		KindPerson,
		KindHousehold,
		KindRelation,
		KindEvidence,
		KindClaim,
		KindSurvey,
	}
}

// ParseEntityKind validates a kind tag coming from a request or a stored row.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	for _, known := range EntityKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind: %q", s)
}

func (k EntityKind) String() string { return string(k) }
