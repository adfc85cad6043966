package backend

import "sync"

// Fake is an in-memory, scriptable Connection used by router and resolver
// tests in place of a real wire transport.
type Fake[T any, F any] struct {
	mu sync.Mutex

	// Handler computes the reply batch for a sent batch. It is called
	// synchronously from a goroutine spawned by Send, so it may block to
	// simulate network latency in tests.
	Handler func(batch []Indexed[T]) ([]Indexed[F], error)

	// Sent records every batch passed to Send, in call order, for test
	// assertions.
	Sent [][]Indexed[T]
}

// NewFake returns a Fake connection driven by handler.
func NewFake[T any, F any](handler func(batch []Indexed[T]) ([]Indexed[F], error)) *Fake[T, F] {
	return &Fake[T, F]{Handler: handler}
}

// Send implements Connection.
func (f *Fake[T, F]) Send(batch []Indexed[T]) <-chan Result[[]Indexed[F]] {
	f.mu.Lock()
	recorded := make([]Indexed[T], len(batch))
	copy(recorded, batch)
	f.Sent = append(f.Sent, recorded)
	f.mu.Unlock()

	ch := make(chan Result[[]Indexed[F]], 1)
	go func() {
		reply, err := f.Handler(batch)
		ch <- Result[[]Indexed[F]]{Value: reply, Err: err}
		close(ch)
	}()
	return ch
}

// CallCount returns the number of batches Send has been called with so far.
func (f *Fake[T, F]) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}
