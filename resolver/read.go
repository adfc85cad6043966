package resolver

import (
	"context"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/internal/metrics"
	"github.com/andrew-lee-architect/netidx/path"
	"go.uber.org/zap"
)

// ResolverRead is a client for the read half of the resolver protocol:
// Resolve, List, and Table. It multiplexes an arbitrary number of concurrent
// Send calls over one default backend connection plus whatever referred
// connections those calls discover along the way.
type ResolverRead struct {
	mux *Multiplexer[ReadOp, ReadReply]
}

// NewResolverRead opens a ResolverRead against the default resolver
// described by cfg, using newConn to open both the default connection and
// any backend a referral later points at.
func NewResolverRead(
	cfg backend.Config,
	auth backend.Auth,
	newConn backend.Constructor[ReadOp, ReadReply],
	logger *zap.Logger,
) (*ResolverRead, error) {
	mux, err := NewMultiplexer("read", cfg, auth, "", newConn, logger)
	if err != nil {
		return nil, err
	}
	return &ResolverRead{mux: mux}, nil
}

// Send routes an arbitrary mix of read operations to their owning backends
// and returns replies in the same order as ops, following referrals
// transparently.
func (r *ResolverRead) Send(ctx context.Context, ops []ReadOp) ([]ReadReply, error) {
	return r.mux.Send(ctx, ops)
}

// Resolve returns the publisher set for each of paths, in the same order.
func (r *ResolverRead) Resolve(ctx context.Context, paths []path.Path) ([]Resolution, error) {
	ops := make([]ReadOp, len(paths))
	for i, p := range paths {
		ops[i] = Resolve(p)
	}
	replies, err := r.Send(ctx, ops)
	if err != nil {
		return nil, err
	}
	out := make([]Resolution, len(replies))
	for i, reply := range replies {
		if reply.Kind == ReplyReadError {
			return nil, reply.Err
		}
		if reply.Kind != ReplyResolved {
			metrics.ProtocolErrorsTotal.WithLabelValues("read").Inc()
			return nil, &ProtocolError{Op: "Resolve", Index: i, Want: "Resolved", Got: reply.String()}
		}
		out[i] = reply.Resolved
	}
	return out, nil
}

// List returns the immediate children of p that have published data or
// structure beneath them.
func (r *ResolverRead) List(ctx context.Context, p path.Path) ([]path.Path, error) {
	replies, err := r.Send(ctx, []ReadOp{List(p)})
	if err != nil {
		return nil, err
	}
	reply := replies[0]
	if reply.Kind == ReplyReadError {
		return nil, reply.Err
	}
	if reply.Kind != ReplyListPaths {
		metrics.ProtocolErrorsTotal.WithLabelValues("read").Inc()
		return nil, &ProtocolError{Op: "List", Index: 0, Want: "List", Got: reply.String()}
	}
	return reply.Paths, nil
}

// Table returns the row and column structure of the tabular subtree rooted
// at p.
func (r *ResolverRead) Table(ctx context.Context, p path.Path) (TableDescriptor, error) {
	replies, err := r.Send(ctx, []ReadOp{Table(p)})
	if err != nil {
		return TableDescriptor{}, err
	}
	reply := replies[0]
	if reply.Kind == ReplyReadError {
		return TableDescriptor{}, reply.Err
	}
	if reply.Kind != ReplyTableDescriptor {
		metrics.ProtocolErrorsTotal.WithLabelValues("read").Inc()
		return TableDescriptor{}, &ProtocolError{Op: "Table", Index: 0, Want: "Table", Got: reply.String()}
	}
	return reply.Table, nil
}
