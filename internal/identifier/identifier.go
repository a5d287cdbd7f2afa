// Package identifier validates scheme-qualified network identifiers.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidFormat = errors.New("invalid_format")

	schemePattern = regexp.MustCompile(`^[0-9]{4}$`)
	valuePattern  = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// Identifier is a network address under a numeric issuing scheme,
// e.g. {Scheme: "0208", Value: "1234567890123"}.
type Identifier struct {
	Scheme string `json:"scheme"`
	Value  string `json:"value"`
}

// Validate reports whether the identifier is well formed: a 4-digit
// scheme and a 1-20 digit value. Pure and deterministic, no lookups.
func Validate(id Identifier) error {
	if !schemePattern.MatchString(id.Scheme) {
		return fmt.Errorf("%w: scheme %q", ErrInvalidFormat, id.Scheme)
	}
	if !valuePattern.MatchString(id.Value) {
		return fmt.Errorf("%w: value %q", ErrInvalidFormat, id.Value)
	}
	return nil
}

// Parse splits a "scheme:value" pair and validates it.
func Parse(raw string) (Identifier, error) {
	scheme, value, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	id := Identifier{Scheme: scheme, Value: value}
	if err := Validate(id); err != nil {
		return Identifier{}, err
	}
	return id, nil
}

func (id Identifier) String() string {
	return id.Scheme + ":" + id.Value
}
