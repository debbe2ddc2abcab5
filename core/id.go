package core

import "github.com/google/uuid"

// NewID generates a new unique identifier (UUID v4 string) used for run,
// invocation and function call correlation.
func NewID() string { return uuid.NewString() }
