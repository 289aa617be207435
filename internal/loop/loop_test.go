package loop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DoRunsSerially(t *testing.T) {
	l := New(nil)
	defer l.Close()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Do(func() { counter++ }))
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, l.Do(func() { got = counter }))
	assert.Equal(t, 50, got)
}

func TestLoop_PostOrder(t *testing.T) {
	l := New(nil)
	defer l.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		assert.True(t, l.Post(func() { order = append(order, i) }))
	}

	var got []int
	require.NoError(t, l.Do(func() { got = append(got, order...) }))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_PanicIsReturned(t *testing.T) {
	l := New(nil)
	defer l.Close()

	err := l.Do(func() { panic("bad") })
	assert.Error(t, err)

	assert.NoError(t, l.Do(func() {}))
}

func TestLoop_Closed(t *testing.T) {
	l := New(nil)
	l.Close()
	l.Close()

	assert.True(t, l.Closed())
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(func() {}), ErrClosed)
}
