package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/handiism/bandcamp-courier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SecondAcquireRejected(t *testing.T) {
	g := NewGate()

	assert.True(t, g.TryAcquire("42"))
	assert.False(t, g.TryAcquire("42"))
	assert.True(t, g.Busy("42"))

	g.Release("42")

	assert.False(t, g.Busy("42"))
	assert.True(t, g.TryAcquire("42"))
}

func TestGate_RequestersAreIndependent(t *testing.T) {
	g := NewGate()

	assert.True(t, g.TryAcquire("1"))
	assert.True(t, g.TryAcquire("2"))
	assert.Equal(t, 2, g.Active())
}

func TestGate_ReleaseIsIdempotent(t *testing.T) {
	var g Gate

	g.Release("never-acquired")
	assert.True(t, g.TryAcquire("7"))
	g.Release("7")
	g.Release("7")
	assert.Equal(t, 0, g.Active())
}

func TestGate_Acquire(t *testing.T) {
	g := NewGate()

	release, err := g.Acquire("42")
	require.NoError(t, err)

	_, err = g.Acquire("42")
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	release()
	release()
	assert.False(t, g.Busy("42"))

	// A stale release must not free a newer job of the same requester.
	release2, err := g.Acquire("42")
	require.NoError(t, err)
	release()
	assert.True(t, g.Busy("42"))
	release2()
}

func TestGate_ConcurrentAcquireSingleWinner(t *testing.T) {
	g := NewGate()

	const workers = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestGate_ConcurrentDistinctRequesters(t *testing.T) {
	g := NewGate()

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id model.RequesterID) {
			defer wg.Done()
			assert.True(t, g.TryAcquire(id))
		}(model.RequesterID(fmt.Sprint(i)))
	}
	wg.Wait()

	assert.Equal(t, workers, g.Active())
}
