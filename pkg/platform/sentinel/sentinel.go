package sentinel

import "errors"

// Sentinel errors for storage-level facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: row does not exist in the store
//   - ErrConflict: a uniqueness rule blocked the write (open conflict pair,
//     duplicate original id)
//   - ErrInvalidState: entity in the wrong lifecycle state for the operation
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
