package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an internal job identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewCorrelationID mints the short-lived public token clients use to refer
// to a job. Random UUIDs keep internal ids unguessable from the outside.
func NewCorrelationID() string {
	return uuid.NewString()
}
