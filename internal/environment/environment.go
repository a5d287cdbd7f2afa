// Package environment scopes every registry and coordinator call to a
// network partition. Sandbox and production identities never share state.
package environment

import (
	"errors"
	"strings"
)

type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

var ErrUnknownEnvironment = errors.New("unknown_environment")

// Parse normalizes a raw environment value. It never guesses: anything
// other than the two known partitions is an error.
func Parse(raw string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(raw))) {
	case Sandbox:
		return Sandbox, nil
	case Production:
		return Production, nil
	default:
		return "", ErrUnknownEnvironment
	}
}

func (e Environment) Valid() bool {
	return e == Sandbox || e == Production
}

func (e Environment) String() string {
	return string(e)
}
