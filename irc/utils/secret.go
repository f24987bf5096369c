// Copyright (c) 2024 The Flex Authors
// released under the MIT license

package utils

import (
	"crypto/subtle"
	"fmt"
)

const redacted = "********"

// Secret is an opaque string (a channel key, a password) that never renders
// its contents through fmt, so it can't leak into logs by accident.
type Secret struct {
	value string
}

// NewSecret wraps a plaintext value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Expose returns the plaintext. Callers must not log the result.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty returns whether the secret has no content.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Equal compares two secrets in constant time.
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(other.value)) == 1
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return "utils.Secret{" + redacted + "}"
}

// Format implements fmt.Formatter so that %v, %s, %q, %x and %+v all redact.
func (s Secret) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('#') {
			fmt.Fprint(f, s.GoString())
			return
		}
		fmt.Fprint(f, redacted)
	case 'q':
		fmt.Fprintf(f, "%q", redacted)
	default:
		fmt.Fprint(f, redacted)
	}
}

// MarshalYAML keeps secrets out of serialized configs.
func (s Secret) MarshalYAML() (interface{}, error) {
	return redacted, nil
}

// UnmarshalYAML reads a plaintext secret from a config file.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	return unmarshal(&s.value)
}
