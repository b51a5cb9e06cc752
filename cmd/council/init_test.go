package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/council-app/types"
)

func TestParseGenesisMember(t *testing.T) {
	m, err := parseGenesisMember("abcd:5")
	require.NoError(t, err)
	assert.Equal(t, types.GenesisMember{Address: "ABCD", Weight: 5}, m)

	m, err = parseGenesisMember("ABCD:3:alice:chair:extra")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Name)
	assert.Equal(t, "chair:extra", m.Role)

	_, err = parseGenesisMember("ABCD")
	assert.Error(t, err)
	_, err = parseGenesisMember("ABCD:heavy")
	assert.Error(t, err)
}

func TestParseChoice(t *testing.T) {
	for _, s := range []string{"yes", "Y", "true"} {
		v, err := parseChoice(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	v, err := parseChoice("no")
	require.NoError(t, err)
	assert.False(t, v)
	_, err = parseChoice("maybe")
	assert.Error(t, err)
}

func TestEncodeIndex(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, encodeIndex(258))
}

func TestVersionWithCommit(t *testing.T) {
	assert.Equal(t, Version, VersionWithCommit(""))
	assert.Equal(t, Version, VersionWithCommit("abc"))
	assert.Equal(t, Version+"-0123abcd", VersionWithCommit("0123abcdef99"))
}
