// Package random provides the run-scoped pseudo-random source used by the
// simulation and cryptographic seed generation helpers.
//
// A Source is owned by exactly one simulation iteration; it is not safe for
// concurrent use and never needs to be.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// SeedSource records where a base seed came from.
type SeedSource string

const (
	// SeedSourceClient marks a seed supplied by the caller.
	SeedSourceClient SeedSource = "client"
	// SeedSourceGenerated marks a seed drawn from crypto/rand.
	SeedSourceGenerated SeedSource = "generated"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns the requested seed when present, otherwise one from
// generate (NewSeed when nil).
func ResolveSeed(requested *int64, generate func() (int64, error)) (int64, SeedSource, error) {
	if requested != nil {
		return *requested, SeedSourceClient, nil
	}
	if generate == nil {
		generate = NewSeed
	}
	seed, err := generate()
	if err != nil {
		return 0, "", err
	}
	return seed, SeedSourceGenerated, nil
}
