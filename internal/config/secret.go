package config

import "strings"

const redacted = "[REDACTED]"

// Secret holds an API key or other credential read from config. Every
// printing and encoding path redacts it; use Reveal for the raw value.
type Secret string

// Reveal returns the raw value. Call it only where the key is compared.
func (s Secret) Reveal() string {
	return string(s)
}

// IsSet reports whether the secret holds a non-blank value.
func (s Secret) IsSet() bool {
	return strings.TrimSpace(string(s)) != ""
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the raw key
func (s Secret) GoString() string {
	if s == "" {
		return `""`
	}
	return `"` + redacted + `"`
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
