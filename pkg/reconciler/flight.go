package reconciler

import (
	"sync"

	"github.com/pario-ai/recallwatch/pkg/models"
)

// flightResult is what a finished regeneration hands to its callers. A
// non-empty reason means the flight chose to serve entry without
// regenerating it.
type flightResult struct {
	entry  models.CachedSummary
	source models.Source
	reason models.StaleReason
}

type call struct {
	done chan struct{}
	res  flightResult
	err  error
}

// flightGroup tracks at most one regeneration per recall number. Unlike
// singleflight.Group it tells the caller whether it started the flight, so
// joiners can fall back to cached data instead of waiting.
type flightGroup struct {
	mu sync.Mutex
	m  map[string]*call
}

func newFlightGroup() *flightGroup {
	return &flightGroup{m: make(map[string]*call)}
}

// join returns the in-flight call for key, creating one if none exists.
// leader is true for the caller that created it; that caller must call
// finish exactly once.
func (g *flightGroup) join(key string) (c *call, leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c, false
	}
	c = &call{done: make(chan struct{})}
	g.m[key] = c
	return c, true
}

// finish publishes the result and removes the flight, so the next caller
// for key starts a new one.
func (g *flightGroup) finish(key string, c *call, res flightResult, err error) {
	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()
	c.res, c.err = res, err
	close(c.done)
}

func (g *flightGroup) inFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
