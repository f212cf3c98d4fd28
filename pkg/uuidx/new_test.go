package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version(), "UUID should be version 7")
	assert.Equal(t, uuid.RFC4122, id.Variant(), "UUID should have RFC4122 variant")

	id2 := New()
	assert.NotEqual(t, id, id2, "Generated UUIDs should be unique")
}

func TestNewString_Format(t *testing.T) {
	idStr := NewString()
	assert.Regexp(t, "^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$", idStr,
		"UUID string should match standard UUID v7 format")
}

func TestClientID(t *testing.T) {
	t.Run("stable for the same seed", func(t *testing.T) {
		assert.Equal(t, ClientID("workstation-1"), ClientID("workstation-1"))
	})

	t.Run("differs across seeds", func(t *testing.T) {
		assert.NotEqual(t, ClientID("workstation-1"), ClientID("workstation-2"))
	})

	t.Run("name based version", func(t *testing.T) {
		id, err := uuid.Parse(ClientID("workstation-1"))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(5), id.Version())
	})

	t.Run("random for empty seed", func(t *testing.T) {
		id, err := uuid.Parse(ClientID(""))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	})
}
