package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_TokenIsStablePerGame(t *testing.T) {
	s := NewStore()

	tok := s.GetOrCreate("game-a")
	assert.NotEmpty(t, tok)
	assert.Equal(t, tok, s.GetOrCreate("game-a"), "token must survive reconnects")
	assert.NotEqual(t, tok, s.GetOrCreate("game-b"), "games get distinct identities")
}

func TestStore_ClearMintsFreshToken(t *testing.T) {
	s := NewStore()

	before := s.GetOrCreate("game-a")
	s.Clear("game-a")
	after := s.GetOrCreate("game-a")

	assert.NotEqual(t, before, after, "logout must start a new identity")
}
