package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	opts, _ := manualOptions()
	m := NewManager(&trackingResolver{}, nil, opts, testLogger())

	a := m.Create("first")
	b := m.Create("second")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	list := m.List()
	require.Len(t, list, 2)

	require.NoError(t, m.Close(a.ID))
	assert.ErrorIs(t, m.Close(a.ID), ErrNotFound)
	_, ok = m.Get(a.ID)
	assert.False(t, ok)

	require.NoError(t, m.CloseAll())
	assert.Equal(t, 0, m.Count())
	assert.ErrorIs(t, b.Do(nil), ErrClosed)
}
