package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/internal/metrics"
	"github.com/andrew-lee-architect/netidx/path"
	"go.uber.org/zap"
)

// ResolverWrite is a client for the write half of the resolver protocol:
// Publish, PublishDefault, Unpublish, Clear, and Heartbeat. Clear and
// Heartbeat are pathless and always reach the default backend; Publish,
// PublishDefault, and Unpublish route the same as reads, by path.
type ResolverWrite struct {
	mux        *Multiplexer[WriteOp, WriteReply]
	writerAddr string
}

// NewResolverWrite opens a ResolverWrite whose Publish calls advertise
// writerAddr as the address publishers should be reached at.
func NewResolverWrite(
	cfg backend.Config,
	auth backend.Auth,
	writerAddr string,
	newConn backend.Constructor[WriteOp, WriteReply],
	logger *zap.Logger,
) (*ResolverWrite, error) {
	mux, err := NewMultiplexer("write", cfg, auth, writerAddr, newConn, logger)
	if err != nil {
		return nil, err
	}
	return &ResolverWrite{mux: mux, writerAddr: writerAddr}, nil
}

// Secrets returns the session-secret map backing this writer's connections.
// A ResolverRead has its own map; NewResolverRead does not accept this one.
func (w *ResolverWrite) Secrets() *backend.Secrets { return w.mux.Secrets() }

// Send routes an arbitrary mix of write operations to their owning backends,
// following referrals transparently, and validates that the reply batch has
// the same length as ops and that each reply's kind is one the
// corresponding request kind can legally produce.
func (w *ResolverWrite) Send(ctx context.Context, ops []WriteOp) ([]WriteReply, error) {
	replies, err := w.mux.Send(ctx, ops)
	if err != nil {
		return nil, err
	}
	if len(replies) != len(ops) {
		metrics.ProtocolErrorsTotal.WithLabelValues("write").Inc()
		return nil, &ProtocolError{
			Op: "Send", Index: -1,
			Want: fmt.Sprintf("%d replies", len(ops)),
			Got:  fmt.Sprintf("%d replies", len(replies)),
		}
	}
	for i, reply := range replies {
		if err := validateWriteReply(i, ops[i], reply); err != nil {
			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				metrics.ProtocolErrorsTotal.WithLabelValues("write").Inc()
			}
			return nil, err
		}
	}
	return replies, nil
}

// validateWriteReply checks that reply is a kind op's request could
// legitimately produce: Published for Publish/PublishDefault, Unpublished
// for Unpublish and Clear (clearing withdraws every publication, so it
// answers the same way Unpublish does), and Published (reused as a plain
// ack) for Heartbeat, which carries no payload worth a distinct reply kind.
// A Referral reply never reaches here: the multiplexer consumes and follows
// referrals itself before returning.
func validateWriteReply(index int, op WriteOp, reply WriteReply) error {
	if reply.Kind == WriteReplyWriteError {
		return reply.Err
	}
	switch op.Kind {
	case WritePublish, WritePublishDefault:
		if reply.Kind != WriteReplyPublished {
			return &ProtocolError{Op: op.String(), Index: index, Want: "Published", Got: reply.String()}
		}
	case WriteUnpublish, WriteClear:
		if reply.Kind != WriteReplyUnpublished {
			return &ProtocolError{Op: op.String(), Index: index, Want: "Unpublished", Got: reply.String()}
		}
	case WriteHeartbeat:
		if reply.Kind != WriteReplyPublished {
			return &ProtocolError{Op: op.String(), Index: index, Want: "Published (ack)", Got: reply.String()}
		}
	}
	return nil
}

// Publish advertises each of paths as served by this writer's address.
func (w *ResolverWrite) Publish(ctx context.Context, paths []path.Path) error {
	_, err := w.Send(ctx, publishOps(paths, Publish))
	return err
}

// PublishDefault advertises each of paths as a default publication: present
// even when no publisher has explicitly claimed it, until explicitly
// unpublished.
func (w *ResolverWrite) PublishDefault(ctx context.Context, paths []path.Path) error {
	_, err := w.Send(ctx, publishOps(paths, PublishDefault))
	return err
}

// Unpublish withdraws a previous Publish or PublishDefault for each of paths.
func (w *ResolverWrite) Unpublish(ctx context.Context, paths []path.Path) error {
	_, err := w.Send(ctx, publishOps(paths, Unpublish))
	return err
}

func publishOps(paths []path.Path, build func(path.Path) WriteOp) []WriteOp {
	ops := make([]WriteOp, len(paths))
	for i, p := range paths {
		ops[i] = build(p)
	}
	return ops
}

// Clear withdraws every path this writer has published.
func (w *ResolverWrite) Clear(ctx context.Context) error {
	_, err := w.Send(ctx, []WriteOp{ClearOp()})
	return err
}

// Heartbeat refreshes this writer's publications so the default backend
// does not expire them for inactivity.
func (w *ResolverWrite) Heartbeat(ctx context.Context) error {
	_, err := w.Send(ctx, []WriteOp{HeartbeatOp()})
	return err
}
