package model

import (
	"net/netip"
	"time"
)

// Credential is a provisioned trust anchor for one game server. Rows are
// append-only: provisioning inserts, the maintenance sweep deletes, nothing
// mutates in place. More than one row may exist for the same (address, port)
// pair, e.g. during token rotation; lookups return all of them.
type Credential struct {
	GameServerAddress netip.Addr
	GameServerPort    int
	// TokenHash is the SHA-256 digest of the raw signed token string.
	TokenHash []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	// Name is an optional human-readable label
	Name string
}

// ServerEndpoint is one distinct provisioned (address, port) pair, however
// many credential rows it currently has
type ServerEndpoint struct {
	Address netip.Addr
	Port    int
}
