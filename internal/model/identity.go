package model

import (
	"fmt"
	"net/netip"
)

// Identity is the (address, port) pair established as trustworthy after all
// authentication steps pass. It is derived from the token's claimed subject,
// lives only for the duration of a request and is never persisted.
type Identity struct {
	Address netip.Addr
	Port    int
}

// String returns the identity in "address:port" form
func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Address, i.Port)
}

// Owns reports whether the identity matches a game's recorded owner
func (i Identity) Owns(g *Game) bool {
	return g != nil && g.GameServerAddress == i.Address && g.GameServerPort == i.Port
}
