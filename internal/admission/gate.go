// Package admission makes sure a requester runs at most one job at a time.
//
// Acquisition never waits: a second request from a busy requester is
// rejected immediately and the caller reports it to the user.
//
//	release, err := gate.Acquire(req.Requester)
//	if err != nil {
//	    return err // admission.ErrAlreadyInProgress
//	}
//	defer release()
package admission

import (
	"errors"
	"sync"

	"github.com/handiism/bandcamp-courier/internal/model"
)

// ErrAlreadyInProgress is returned when the requester already has an active job.
var ErrAlreadyInProgress = errors.New("a download is already in progress for this requester")

// Gate tracks the requesters that currently hold an active job.
// The zero value is ready to use.
type Gate struct {
	mu   sync.Mutex
	busy map[model.RequesterID]struct{}
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{busy: make(map[model.RequesterID]struct{})}
}

// TryAcquire marks id busy and returns true, or returns false without any
// state change if id is already busy.
func (g *Gate) TryAcquire(id model.RequesterID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[id]; ok {
		return false
	}
	if g.busy == nil {
		g.busy = make(map[model.RequesterID]struct{})
	}
	g.busy[id] = struct{}{}
	return true
}

// Release removes id from the busy set. Releasing an idle id is a no-op.
func (g *Gate) Release(id model.RequesterID) {
	g.mu.Lock()
	delete(g.busy, id)
	g.mu.Unlock()
}

// Acquire is TryAcquire returning a release function.
// The release function may be called any number of times.
func (g *Gate) Acquire(id model.RequesterID) (func(), error) {
	if !g.TryAcquire(id) {
		return nil, ErrAlreadyInProgress
	}
	var once sync.Once
	return func() { once.Do(func() { g.Release(id) }) }, nil
}

// Busy reports whether id currently holds a job.
func (g *Gate) Busy(id model.RequesterID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[id]
	return ok
}

// Active returns the number of requesters with an active job.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.busy)
}
