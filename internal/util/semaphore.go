package util

// Semaphore is a counting semaphore (spec §4.H.1 "Concurrency"). The
// executor's graph walk (graph.Walk) bounds concurrent tasks with its own
// channel and does not use this type.
type Semaphore struct {
	tickets chan struct{}
}

// NewSemaphore returns a Semaphore that allows at most n concurrent holders.
// n <= 0 means unbounded.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{tickets: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available. A nil ticket channel (unbounded
// semaphore) never blocks.
func (s *Semaphore) Acquire() {
	if s.tickets == nil {
		return
	}
	s.tickets <- struct{}{}
}

// Release frees a previously acquired slot.
func (s *Semaphore) Release() {
	if s.tickets == nil {
		return
	}
	<-s.tickets
}
