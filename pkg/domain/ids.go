// Package domain holds shared domain primitives: typed identifiers and the
// code-list version value object. Types here validate at parse time so the
// rest of the system can trust them.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types prevent cross-wiring a package id
// where a conflict id is expected; the compiler enforces it.
type (
	// PackageID identifies one submitted import batch.
	PackageID uuid.UUID

	// RecordID identifies one staging record.
	RecordID uuid.UUID

	// ConflictID identifies one reviewable duplicate candidate.
	ConflictID uuid.UUID

	// EntityID identifies an entity in the authoritative store.
	EntityID uuid.UUID
)

func NewPackageID() PackageID   { return PackageID(uuid.New()) }
func NewRecordID() RecordID     { return RecordID(uuid.New()) }
func NewConflictID() ConflictID { return ConflictID(uuid.New()) }
func NewEntityID() EntityID     { return EntityID(uuid.New()) }

func (id PackageID) String() string  { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }
func (id ConflictID) String() string { return uuid.UUID(id).String() }
func (id EntityID) String() string   { return uuid.UUID(id).String() }

// Text marshalling keeps ids readable in JSON payloads and logs.
func (id PackageID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ConflictID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EntityID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *PackageID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = PackageID(u)
	return err
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = RecordID(u)
	return err
}

func (id *ConflictID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ConflictID(u)
	return err
}

func (id *EntityID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = EntityID(u)
	return err
}

func (id PackageID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ConflictID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// ParsePackageID validates and returns a PackageID.
func ParsePackageID(s string) (PackageID, error) {
	u, err := parseUUID(s, "package id")
	return PackageID(u), err
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record id")
	return RecordID(u), err
}

// ParseConflictID validates and returns a ConflictID.
func ParseConflictID(s string) (ConflictID, error) {
	u, err := parseUUID(s, "conflict id")
	return ConflictID(u), err
}

// ParseEntityID validates and returns an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "entity id")
	return EntityID(u), err
}

// parseUUID rejects empty, malformed, and nil UUIDs. IDs arrive from URL
// parameters and request bodies, so this is a trust boundary.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", what))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s", what))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must not be nil", what))
	}
	return u, nil
}
