package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Authentication errors. Every authentication failure collapses to
	// ErrUnauthenticated at the API boundary; ErrCredentialNotFound wraps it
	// so callers can tell the no-credential case apart internally while the
	// boundary still sees one uniform rejection.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrCredentialNotFound = fmt.Errorf("no credential stored for game server: %w", ErrUnauthenticated)

	// Game errors
	ErrGameNotFound = errors.New("game not found")
	ErrNotGameOwner = errors.New("game is owned by another game server")
	ErrGameExists   = errors.New("game already exists")
)
