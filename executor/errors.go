package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilCapability is returned by New when no capability is given.
var ErrNilCapability = errors.New("executor: nil capability")

// MissingVariablesError is returned when two or more template variables
// have no value. Missing keeps the declaration order.
type MissingVariablesError struct {
	Missing []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing prompt values: %s", strings.Join(e.Missing, ", "))
}
