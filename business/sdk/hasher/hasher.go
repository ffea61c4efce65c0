// Package hasher provides one-way salted hashing of secrets with bcrypt.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the work factor used when none is configured.
const DefaultCost = 10

// Bcrypt hashes and compares secrets with a fixed work factor.
type Bcrypt struct {
	cost int
}

// New constructs a Bcrypt hasher. A cost outside the range bcrypt accepts
// falls back to DefaultCost.
func New(cost int) Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}

	return Bcrypt{cost: cost}
}

// Cost returns the configured work factor.
func (b Bcrypt) Cost() int {
	return b.cost
}

// Hash returns the bcrypt hash of the plaintext. The salt is random, so two
// calls with the same plaintext return different hashes.
func (b Bcrypt) Hash(plaintext string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return nil, fmt.Errorf("generatefrompassword: %w", err)
	}

	return hash, nil
}

// Compare reports whether the plaintext matches the hash. A malformed hash is
// a mismatch.
func (b Bcrypt) Compare(plaintext string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
