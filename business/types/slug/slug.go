// Package slug represents the url-safe identifier of a tenant.
package slug

import (
	"fmt"
	"regexp"
)

// Slug represents a tenant slug. It is lowercase alphanumeric plus hyphen and
// never changes after the tenant is created.
type Slug struct {
	value string
}

// String returns the value of the slug.
func (s Slug) String() string {
	return s.value
}

// Equal provides support for the go-cmp package and testing.
func (s Slug) Equal(s2 Slug) bool {
	return s.value == s2.value
}

// MarshalText provides support for logging and any marshal needs.
func (s Slug) MarshalText() ([]byte, error) {
	return []byte(s.value), nil
}

// =============================================================================

var slugRegEx = regexp.MustCompile(`^[a-z0-9-]+$`)

const (
	minLength = 2
	maxLength = 63
)

// IsValid reports whether the value has the shape of a slug.
func IsValid(value string) bool {
	return slugRegEx.MatchString(value)
}

// Parse parses the string value and returns a slug if the value complies
// with the rules for a slug.
func Parse(value string) (Slug, error) {
	if len(value) < minLength || len(value) > maxLength {
		return Slug{}, fmt.Errorf("invalid slug %q: length must be between %d and %d", value, minLength, maxLength)
	}

	if !IsValid(value) {
		return Slug{}, fmt.Errorf("invalid slug %q", value)
	}

	return Slug{value}, nil
}

// MustParse parses the string value and returns a slug if the value
// complies with the rules for a slug. If an error occurs the function panics.
func MustParse(value string) Slug {
	s, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return s
}
