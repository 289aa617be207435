package event

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeed_DeliversInOrder(t *testing.T) {
	f := NewFeed[int]("test", testLogger())

	var got []string
	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })

	f.Emit(1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestFeed_PanicDoesNotStopDelivery(t *testing.T) {
	f := NewFeed[string]("test", testLogger())

	delivered := 0
	f.Subscribe(func(string) { panic("boom") })
	f.Subscribe(func(string) { delivered++ })

	assert.NotPanics(t, func() { f.Emit("x") })
	assert.Equal(t, 1, delivered)
}

func TestFeed_Dispose(t *testing.T) {
	f := NewFeed[int]("test", nil)

	calls := 0
	dispose := f.Subscribe(func(int) { calls++ })
	f.Emit(1)
	dispose()
	dispose()
	f.Emit(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.Len())
}

func TestFeed_Once(t *testing.T) {
	f := NewFeed[int]("test", nil)

	var got []int
	f.Once(func(v int) { got = append(got, v) })
	f.Emit(1)
	f.Emit(2)

	assert.Equal(t, []int{1}, got)
}

func TestFeed_UnsubscribeDuringEmit(t *testing.T) {
	f := NewFeed[int]("test", nil)

	var second int
	var dispose func()
	dispose = f.Subscribe(func(int) { dispose() })
	f.Subscribe(func(int) { second++ })

	f.Emit(1)
	f.Emit(2)

	assert.Equal(t, 2, second)
	assert.Equal(t, 1, f.Len())
}
