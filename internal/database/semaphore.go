package database

import "github.com/staticdhcpd/staticdhcpd/internal/metrics"

// Semaphore is a counting semaphore bounding the number of simultaneous
// real database calls (spec §4.2). A cache hit never acquires it.
type Semaphore struct {
	slots chan struct{}
}

// defaultSemaphoreSize is used when a backend does not configure a pool
// size; the spec calls for "a very large value" as the default bound.
const defaultSemaphoreSize = 4096

// NewSemaphore creates a semaphore with the given number of slots. A
// size of zero falls back to defaultSemaphoreSize.
func NewSemaphore(size int) *Semaphore {
	if size <= 0 {
		size = defaultSemaphoreSize
	}
	return &Semaphore{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free.
func (s *Semaphore) Acquire() {
	s.slots <- struct{}{}
	metrics.DatabaseCallsInFlight.Inc()
}

// Release frees a slot.
func (s *Semaphore) Release() {
	metrics.DatabaseCallsInFlight.Dec()
	<-s.slots
}
