package utils

import "github.com/google/uuid"

// IDGenerator produces unique identifiers for events and snapshots.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
