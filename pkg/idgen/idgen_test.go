package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyflakeGenerator_Unique(t *testing.T) {
	gen, err := NewSonyflakeGenerator(7)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := gen.NextID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()
	a, err := gen.NextID()
	require.NoError(t, err)
	b, err := gen.NextID()
	require.NoError(t, err)

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

type fixedGenerator struct{ id string }

func (g fixedGenerator) NextID() (string, error) { return g.id, nil }

func TestSetDefaultGenerator(t *testing.T) {
	prev := GetDefaultGenerator()
	t.Cleanup(func() { SetDefaultGenerator(prev) })

	SetDefaultGenerator(fixedGenerator{id: "fixed"})
	id, err := NextID()
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
}
