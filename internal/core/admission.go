package core

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrent sessions. The accept loop reserves a
// ticket before accepting; the session's teardown releases it.
type Gate struct {
	sem     *semaphore.Weighted
	size    int
	inUse   atomic.Int64
	metrics *Metrics
}

// NewGate creates a gate admitting size concurrent sessions.
func NewGate(size int, metrics *Metrics) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		metrics: metrics,
	}
}

// Reserve blocks until capacity is available or ctx is done.
func (g *Gate) Reserve(ctx context.Context) (*Ticket, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.metrics.setAdmissionInUse(int(g.inUse.Add(1)))
	return &Ticket{gate: g}, nil
}

// TryReserve reserves without blocking; ok is false when the gate is full.
func (g *Gate) TryReserve() (*Ticket, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.metrics.setAdmissionInUse(int(g.inUse.Add(1)))
	return &Ticket{gate: g}, true
}

// InUse returns the number of outstanding tickets. A TCP accept loop parked in
// Accept holds one, so InUse can exceed the number of live sessions by one.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Size returns the gate capacity.
func (g *Gate) Size() int {
	return g.size
}

// Ticket is one unit of admission capacity.
type Ticket struct {
	gate *Gate
	once sync.Once
}

// Release returns the capacity to the gate. Only the first call has an effect.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.gate.metrics.setAdmissionInUse(int(t.gate.inUse.Add(-1)))
		t.gate.sem.Release(1)
	})
}
