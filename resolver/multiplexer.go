// Package resolver implements the client side of the federated name
// resolution protocol: a generic multiplexer that routes a batch of
// operations to the backends that own them, follows referrals up to a
// bounded depth, and reassembles replies in the caller's original order; and
// the ResolverRead/ResolverWrite facades built on top of it.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/internal/metrics"
	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/pool"
	"github.com/andrew-lee-architect/netidx/router"
	"go.uber.org/zap"
)

// MaxReferrals bounds both how many backend connections the multiplexer will
// cache before clearing them, and how many referral hops a single Send call
// will follow before giving up.
const MaxReferrals = 128

// replied is implemented by reply types (ReadReply, WriteReply) so the
// multiplexer can recognize a referral without knowing the reply's concrete
// shape.
type replied interface {
	AsReferral() (router.Referral, bool)
}

// Multiplexer owns one default backend connection, a referral-keyed router,
// and the lazily-opened connections to referred backends. It is safe for
// concurrent use: Send may be called from multiple goroutines at once, each
// following its own referral chain against shared router and connection
// state.
type Multiplexer[T router.Pathed, F replied] struct {
	mu          sync.Mutex
	rtr         *router.Router
	defaultConn backend.Connection[T, F]
	byPath      map[path.Path]backend.Connection[T, F]
	newConn     backend.Constructor[T, F]
	auth        backend.Auth
	writerAddr  string
	secrets     *backend.Secrets

	logger *zap.Logger
	facade string // metrics label: "read" or "write"

	indexedPool *pool.Pool[backend.Indexed[F]]
}

// NewMultiplexer opens the default backend connection via newConn and
// returns a Multiplexer ready to route batches against it, falling back to
// newConn again for every referred backend it subsequently discovers.
func NewMultiplexer[T router.Pathed, F replied](
	facade string,
	defaultCfg backend.Config,
	auth backend.Auth,
	writerAddr string,
	newConn backend.Constructor[T, F],
	logger *zap.Logger,
) (*Multiplexer[T, F], error) {
	secrets := backend.NewSecrets()
	def, err := newConn(defaultCfg, auth, writerAddr, secrets)
	if err != nil {
		return nil, fmt.Errorf("opening default backend: %w", err)
	}
	return &Multiplexer[T, F]{
		rtr:         router.New(),
		defaultConn: def,
		byPath:      make(map[path.Path]backend.Connection[T, F]),
		newConn:     newConn,
		auth:        auth,
		writerAddr:  writerAddr,
		secrets:     secrets,
		logger:      logger,
		facade:      facade,
		indexedPool: pool.New[backend.Indexed[F]](1024),
	}, nil
}

// Secrets returns the session-secret map this multiplexer passes to every
// backend connection it opens. Each multiplexer creates its own map;
// NewMultiplexer does not accept an existing one.
func (m *Multiplexer[T, F]) Secrets() *backend.Secrets { return m.secrets }

// waiter pairs a pending backend reply channel with the sub-batch that
// produced it. Send reads only the channel.
type waiter[T any, F any] struct {
	sub router.SubBatch[T]
	ch  <-chan backend.Result[[]backend.Indexed[F]]
}

// Send routes batch to the backends that currently own each operation's
// path (the default backend for anything uncached or pathless), awaits
// every sub-batch's reply, installs any referrals it is told about, and
// retries until a pass produces no referrals at all. It fails once more
// than MaxReferrals hops have been followed without converging, matching
// the upstream resolver's own overflow behavior rather than silently
// returning a partial result.
func (m *Multiplexer[T, F]) Send(ctx context.Context, batch []T) ([]F, error) {
	start := time.Now()
	defer func() {
		metrics.SendDuration.WithLabelValues(m.facade).Observe(time.Since(start).Seconds())
	}()
	metrics.BatchSize.WithLabelValues(m.facade).Observe(float64(len(batch)))

	hops := 0
	for {
		m.mu.Lock()
		if len(m.byPath) > MaxReferrals {
			m.byPath = make(map[path.Path]backend.Connection[T, F])
			metrics.RouterCacheResetsTotal.WithLabelValues(m.facade).Inc()
			m.logger.Warn("backend connection cache overflowed, resetting",
				zap.Int("threshold", MaxReferrals))
		}

		subBatches := router.RouteBatch(m.rtr, batch)
		waiters := make([]waiter[T, F], 0, len(subBatches))
		for _, sb := range subBatches {
			conn, err := m.connectionForLocked(sb)
			if err != nil {
				m.mu.Unlock()
				return nil, err
			}
			waiters = append(waiters, waiter[T, F]{sub: sb, ch: conn.Send(sb.Items)})
		}
		m.mu.Unlock()

		finished := m.indexedPool.Get()
		referralSeen := false
		for _, w := range waiters {
			var res backend.Result[[]backend.Indexed[F]]
			select {
			case res = <-w.ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if res.Err != nil {
				return nil, fmt.Errorf("backend send: %w", res.Err)
			}
			for _, it := range res.Value {
				if ref, ok := it.Value.AsReferral(); ok {
					m.mu.Lock()
					m.rtr.AddReferral(ref)
					m.mu.Unlock()
					metrics.ReferralsFollowedTotal.WithLabelValues(m.facade).Inc()
					referralSeen = true
				} else {
					finished = append(finished, it)
				}
			}
		}

		if !referralSeen {
			sort.Slice(finished, func(i, j int) bool { return finished[i].Index < finished[j].Index })
			out := make([]F, len(finished))
			for i, it := range finished {
				out[i] = it.Value
			}
			m.indexedPool.Put(finished)
			return out, nil
		}
		m.indexedPool.Put(finished)

		hops++
		if hops > MaxReferrals {
			return nil, errReferralDepth(MaxReferrals)
		}
	}
}

// connectionForLocked returns the connection to use for sb, opening and
// caching one against the referral the router has recorded for sb.Backend
// if none is cached yet. Callers must hold m.mu.
func (m *Multiplexer[T, F]) connectionForLocked(sb router.SubBatch[T]) (backend.Connection[T, F], error) {
	if sb.Default {
		return m.defaultConn, nil
	}
	if conn, ok := m.byPath[sb.Backend]; ok {
		return conn, nil
	}
	ref, ok := m.rtr.GetReferral(sb.Backend)
	if !ok {
		return nil, fmt.Errorf("resolver: no cached referral for %s", sb.Backend)
	}
	conn, err := m.newConn(backend.Config{Addrs: ref.Addrs}, m.auth, m.writerAddr, m.secrets)
	if err != nil {
		return nil, fmt.Errorf("opening backend for referral to %s: %w", sb.Backend, err)
	}
	metrics.BackendConnectionsOpenTotal.WithLabelValues(m.facade).Inc()
	m.byPath[sb.Backend] = conn
	return conn, nil
}
