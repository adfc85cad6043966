// Package backend names the external collaborator the core depends on but
// does not implement: a single-cluster transport that speaks the resolver
// wire protocol. The core only requires a typed, ordered request/response
// channel. Auth negotiation and per-peer session secrets are likewise
// modelled as opaque types the real transport would fill in.
package backend

import "sync"

// Auth identifies the authentication mode a connection should negotiate.
// The negotiation itself is entirely the transport's concern.
type Auth int

const (
	AuthAnonymous Auth = iota
	AuthKrb5
	AuthLocal
)

// Config describes how to reach one backend cluster: either the default
// resolver endpoint or a referred-to cluster's advertised addresses.
type Config struct {
	Addrs []string
}

// Indexed pairs a batch element with its original 0-based position in the
// caller's batch, the correlation token the multiplexer uses to reassemble
// an ordered result vector.
type Indexed[T any] struct {
	Index int
	Value T
}

// Result carries a connection's reply batch or the error that aborted it.
type Result[T any] struct {
	Value T
	Err   error
}

// Connection is an open transport session to exactly one cluster. Send must
// be safe to call while holding only a reference to the connection: it
// enqueues into the connection's own internal channel and returns
// immediately with a completion handle, never blocking the caller.
type Connection[T any, F any] interface {
	Send(batch []Indexed[T]) <-chan Result[[]Indexed[F]]
}

// Constructor opens a new Connection for the given cluster. The real
// transport's equivalent is synchronous (it returns an object whose Send
// performs the actual I/O); this module depends on it only as a function
// value so tests can substitute a fake without an interface in the hot path.
type Constructor[T any, F any] func(cfg Config, auth Auth, writerAddr string, secrets *Secrets) (Connection[T, F], error)

// Secrets is the shared, opaque per-peer session-secret map the transport
// layer populates during auth negotiation. Many readers (backend
// handshakes) may consult it concurrently; writers are rare, hence the
// reader-writer lock.
type Secrets struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewSecrets returns an empty secrets map.
func NewSecrets() *Secrets {
	return &Secrets{data: make(map[string]string)}
}

// Get returns the secret stored for addr, if any.
func (s *Secrets) Get(addr string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[addr]
	return v, ok
}

// Set installs or replaces the secret for addr.
func (s *Secrets) Set(addr, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[addr] = secret
}

// Delete removes any secret stored for addr.
func (s *Secrets) Delete(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, addr)
}
