package persistentpeersparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntries(t *testing.T) {
	got, err := ParseEntries("abcd@ygg://[200:1::2]:4224, ef01@10.0.0.1 ,,9a@host.example:26656")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "abcd", got[0].ID)
	assert.Equal(t, ProtoYgg, got[0].Proto)
	assert.True(t, got[0].IsOverlay())
	assert.Equal(t, "[200:1::2]", got[0].Address)
	assert.Equal(t, "200:1::2", got[0].Host())
	require.NotNil(t, got[0].Port)
	assert.Equal(t, 4224, *got[0].Port)

	assert.Equal(t, "", got[1].Proto)
	assert.False(t, got[1].IsOverlay())
	assert.Equal(t, "10.0.0.1", got[1].Host())
	assert.Equal(t, "10.0.0.1", got[1].Address)
	assert.Nil(t, got[1].Port)

	assert.Equal(t, "host.example", got[2].Address)
	assert.Equal(t, 26656, *got[2].Port)
}

func TestParseEntriesRejects(t *testing.T) {
	for _, in := range []string{"noid", "xyz@host", "ab@host:port", "ab@", "ab@host:70000", "ab@ygg://[200::1"} {
		_, err := ParseEntries(in)
		assert.Error(t, err, in)
	}
	_, err := ParseEntries("ab@10.0.0.1, broken")
	assert.Error(t, err, "one bad entry fails the list")

	got, err := ParseEntries("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDirect(t *testing.T) {
	got, err := ParseEntries("ab@10.0.0.1, cd@10.0.0.2:7000")
	require.NoError(t, err)
	assert.Equal(t, "ab@10.0.0.1:26656", got[0].Direct(26656))
	assert.Equal(t, "cd@10.0.0.2:7000", got[1].Direct(26656))
	assert.Equal(t, 7000, got[1].PortOr(1))
}
