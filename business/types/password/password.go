// Package password represents a plaintext password supplied by a client.
package password

import (
	"errors"
	"fmt"
)

// Password represents a password in the system. The value is never printed.
type Password struct {
	value string
}

// String returns the value of the password.
func (p Password) String() string {
	return p.value
}

// Equal provides support for the go-cmp package and testing.
func (p Password) Equal(p2 Password) bool {
	return p.value == p2.value
}

// MarshalText keeps the password out of logs.
func (p Password) MarshalText() ([]byte, error) {
	return []byte("[MASKED]"), nil
}

// Format keeps the password out of %v and %+v output.
func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte("[MASKED]"))
}

// =============================================================================

// MinLength is the shortest password accepted on registration.
const MinLength = 8

// maxLength is the bcrypt input limit.
const maxLength = 72

// Parse parses the string value and returns a password if the value complies
// with the rules for a password.
func Parse(value string) (Password, error) {
	switch {
	case len(value) < MinLength:
		return Password{}, fmt.Errorf("password must be at least %d characters", MinLength)
	case len(value) > maxLength:
		return Password{}, errors.New("password must be at most 72 bytes")
	}

	return Password{value}, nil
}

// MustParse parses the string value and returns a password if the value
// complies with the rules for a password. If an error occurs the function panics.
func MustParse(value string) Password {
	pass, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return pass
}
