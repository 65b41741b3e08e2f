// Package idgen issues opaque, unguessable keys used as semaphore lease
// tokens.
package idgen

import "github.com/google/uuid"

// Generator mints a new opaque key, unique per call.
type Generator interface {
	NewKey() string
}

// UUIDGenerator mints keys from google/uuid's random (v4) generator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewKey() string {
	return uuid.NewString()
}
