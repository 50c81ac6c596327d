package model

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityString(t *testing.T) {
	id := Identity{Address: netip.MustParseAddr("127.0.0.1"), Port: 7777}
	assert.Equal(t, "127.0.0.1:7777", id.String())
}

func TestIdentityOwns(t *testing.T) {
	id := Identity{Address: netip.MustParseAddr("127.0.0.1"), Port: 7777}

	owned := &Game{GameServerAddress: netip.MustParseAddr("127.0.0.1"), GameServerPort: 7777}
	otherPort := &Game{GameServerAddress: netip.MustParseAddr("127.0.0.1"), GameServerPort: 7778}
	otherAddr := &Game{GameServerAddress: netip.MustParseAddr("10.0.0.9"), GameServerPort: 7777}

	assert.True(t, id.Owns(owned))
	assert.False(t, id.Owns(otherPort))
	assert.False(t, id.Owns(otherAddr))
	assert.False(t, id.Owns(nil))
}
