package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	id, err := ParseIdentifier("  manus-test \n")
	require.NoError(t, err)
	assert.Equal(t, Identifier("manus-test"), id)

	for _, raw := range []string{"", " ", "\t\n  "} {
		_, err := ParseIdentifier(raw)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "raw=%q", raw)
	}
}

func TestAddressValidate(t *testing.T) {
	assert.NoError(t, Address{Host: "play.manus.im", Port: 25565}.Validate())
	assert.NoError(t, Address{Host: "h", Port: 1}.Validate())
	assert.NoError(t, Address{Host: "h", Port: 65535}.Validate())

	assert.Error(t, Address{Host: "", Port: 25565}.Validate())
	assert.Error(t, Address{Host: "  ", Port: 25565}.Validate())
	assert.Error(t, Address{Host: "h", Port: 0}.Validate())
	assert.Error(t, Address{Host: "h", Port: 65536}.Validate())
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "play.manus.im:25565", Address{Host: "play.manus.im", Port: 25565}.String())
	assert.Equal(t, "[::1]:25565", Address{Host: "::1", Port: 25565}.String())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("Online")
	assert.True(t, ok)
	assert.Equal(t, StatusOnline, s)

	s, ok = ParseStatus("offline")
	assert.True(t, ok)
	assert.Equal(t, StatusOffline, s)

	s, ok = ParseStatus("")
	assert.False(t, ok)
	assert.Equal(t, StatusLoading, s)
	assert.Equal(t, "Loading...", s.Label())
}
