// Package registry maps application item types to the 128-bit UUIDs that
// declare them on the snapshot wire, and back.
package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TypeUnknown is returned by LookupUUID for UUIDs with no registration.
// Callers treat items resolving to it as "ignore this item".
const TypeUnknown int32 = -1

var (
	ErrNilUUID       = errors.New("registry: uuid must not be nil")
	ErrNegativeType  = errors.New("registry: type id must not be negative")
	ErrDuplicateType = errors.New("registry: type id already registered")
	ErrDuplicateUUID = errors.New("registry: uuid already registered")
)

// Registry is a bidirectional map between integer type IDs and UUIDs. It is
// populated at startup by the domain layer and is effectively immutable for
// the rest of the session; it is not safe for concurrent mutation.
type Registry struct {
	byID   map[int32]uuid.UUID
	byUUID map[uuid.UUID]int32
}

func New() *Registry {
	return &Registry{
		byID:   make(map[int32]uuid.UUID),
		byUUID: make(map[uuid.UUID]int32),
	}
}

// Register binds id to u. Both directions must be unique.
func (r *Registry) Register(id int32, u uuid.UUID) error {
	if u == uuid.Nil {
		return fmt.Errorf("%w: type %d", ErrNilUUID, id)
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeType, id)
	}
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateType, id)
	}
	if _, ok := r.byUUID[u]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUUID, u)
	}
	r.byID[id] = u
	r.byUUID[u] = id
	return nil
}

// LookupUUID returns the type id registered for u, or TypeUnknown.
func (r *Registry) LookupUUID(u uuid.UUID) int32 {
	id, ok := r.byUUID[u]
	if !ok {
		return TypeUnknown
	}
	return id
}

// UUID returns the UUID registered for id.
func (r *Registry) UUID(id int32) (uuid.UUID, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// Len reports the number of registrations.
func (r *Registry) Len() int {
	return len(r.byID)
}
