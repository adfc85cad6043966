package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/router"
	"go.uber.org/zap"
)

// constructorSequence returns a backend.Constructor that hands out conns in
// order: the first call (made by NewMultiplexer itself, for the default
// backend) gets conns[0], and each subsequent call made while following a
// new referral gets the next one.
func constructorSequence[T any, F any](conns ...backend.Connection[T, F]) backend.Constructor[T, F] {
	i := 0
	return func(cfg backend.Config, auth backend.Auth, writerAddr string, secrets *backend.Secrets) (backend.Connection[T, F], error) {
		if i >= len(conns) {
			return nil, errors.New("constructorSequence: exhausted")
		}
		c := conns[i]
		i++
		return c, nil
	}
}

func newReadMux(t *testing.T, conns ...backend.Connection[ReadOp, ReadReply]) *Multiplexer[ReadOp, ReadReply] {
	t.Helper()
	mux, err := NewMultiplexer[ReadOp, ReadReply]("test", backend.Config{}, backend.AuthAnonymous, "", constructorSequence(conns...), zap.NewNop())
	if err != nil {
		t.Fatalf("NewMultiplexer: %v", err)
	}
	return mux
}

func newWriteMux(t *testing.T, conns ...backend.Connection[WriteOp, WriteReply]) *Multiplexer[WriteOp, WriteReply] {
	t.Helper()
	mux, err := NewMultiplexer[WriteOp, WriteReply]("test", backend.Config{}, backend.AuthAnonymous, "writer:1", constructorSequence(conns...), zap.NewNop())
	if err != nil {
		t.Fatalf("NewMultiplexer: %v", err)
	}
	return mux
}

// TestSendNoReferrals covers a batch that resolves entirely against the
// default backend in a single pass.
func TestSendNoReferrals(t *testing.T) {
	resolved := backend.NewFake(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind:     ReplyResolved,
				Resolved: Resolution{Path: it.Value.P, Publishers: []string{"p1:1"}},
			}}
		}
		return out, nil
	})
	mux := newReadMux(t, resolved)

	out, err := mux.Send(context.Background(), []ReadOp{Resolve(path.New("/a")), Resolve(path.New("/b"))})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(out) != 2 || out[0].Resolved.Publishers[0] != "p1:1" {
		t.Fatalf("unexpected result: %#v", out)
	}
	if resolved.CallCount() != 1 {
		t.Fatalf("expected exactly one round trip, got %d", resolved.CallCount())
	}
}

// TestSendSingleReferralFollowed covers a Resolve that the default backend
// refers elsewhere; the multiplexer must open the referred connection and
// retry against it, ending up with a Resolved reply and no referral leaking
// into the caller's result.
func TestSendSingleReferralFollowed(t *testing.T) {
	xAddr := []string{"x:1"}
	var xFake *backend.Fake[ReadOp, ReadReply]
	xFake = backend.NewFake(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind:     ReplyResolved,
				Resolved: Resolution{Path: it.Value.P, Publishers: []string{"xhost:1"}},
			}}
		}
		return out, nil
	})

	defaultFake := backend.NewFake(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind: ReplyReadReferral,
				Referral: router.Referral{
					Path: path.New("/x"), TTL: time.Minute, Addrs: xAddr,
				},
			}}
		}
		return out, nil
	})

	mux := newReadMux(t, defaultFake, xFake)

	out, err := mux.Send(context.Background(), []ReadOp{Resolve(path.New("/x/1"))})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(out) != 1 || out[0].Kind != ReplyResolved || out[0].Resolved.Publishers[0] != "xhost:1" {
		t.Fatalf("unexpected result: %#v", out)
	}
	if defaultFake.CallCount() != 1 {
		t.Fatalf("expected default backend contacted once, got %d", defaultFake.CallCount())
	}
	if xFake.CallCount() != 1 {
		t.Fatalf("expected referred backend contacted once, got %d", xFake.CallCount())
	}
}

// TestSendMixedFanOutPreservesOrder routes a batch that is split between the
// default backend and an already-cached referral, and checks the merged
// result still matches the caller's original index order.
func TestSendMixedFanOutPreservesOrder(t *testing.T) {
	defaultFake := backend.NewFake(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind: ReplyListPaths, Paths: []path.Path{it.Value.P},
			}}
		}
		return out, nil
	})
	xFake := backend.NewFake(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind: ReplyListPaths, Paths: []path.Path{it.Value.P},
			}}
		}
		return out, nil
	})

	mux := newReadMux(t, defaultFake, xFake)
	mux.rtr.AddReferral(router.Referral{Path: path.New("/x"), TTL: time.Minute, Addrs: []string{"x:1"}})

	ops := []ReadOp{
		List(path.New("/a")),
		List(path.New("/x/1")),
		List(path.New("/b")),
		List(path.New("/x/2")),
	}
	out, err := mux.Send(context.Background(), ops)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 replies, got %d", len(out))
	}
	for i, reply := range out {
		if len(reply.Paths) != 1 || reply.Paths[0] != ops[i].P {
			t.Errorf("index %d: got paths %v, want [%s]", i, reply.Paths, ops[i].P)
		}
	}
}

// TestSendReferralDepthLimit covers a backend that always answers with a
// referral to itself: Send must fail once MaxReferrals hops are exceeded
// rather than return a partial or looping forever.
func TestSendReferralDepthLimit(t *testing.T) {
	loopAddr := []string{"loop:1"}
	loopReferral := func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
		out := make([]backend.Indexed[ReadReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
				Kind:     ReplyReadReferral,
				Referral: router.Referral{Path: path.New("/loop"), TTL: time.Minute, Addrs: loopAddr},
			}}
		}
		return out, nil
	}
	defaultFake := backend.NewFake(loopReferral)
	loopFake := backend.NewFake(loopReferral)

	mux := newReadMux(t, defaultFake, loopFake)

	_, err := mux.Send(context.Background(), []ReadOp{Resolve(path.New("/loop/1"))})
	if err == nil {
		t.Fatal("expected an error from an unbounded referral chain")
	}
}

// TestWriteSendProtocolCheck covers a backend that answers a Publish with a
// reply kind Publish can never legitimately produce: ResolverWrite.Send must
// reject it as a protocol violation rather than return it to the caller.
func TestWriteSendProtocolCheck(t *testing.T) {
	fake := backend.NewFake(func(batch []backend.Indexed[WriteOp]) ([]backend.Indexed[WriteReply], error) {
		out := make([]backend.Indexed[WriteReply], len(batch))
		for i, it := range batch {
			out[i] = backend.Indexed[WriteReply]{Index: it.Index, Value: WriteReply{Kind: WriteReplyUnpublished}}
		}
		return out, nil
	})
	w := &ResolverWrite{mux: newWriteMux(t, fake), writerAddr: "writer:1"}

	_, err := w.Send(context.Background(), []WriteOp{Publish(path.New("/a"))})
	if err == nil {
		t.Fatal("expected a protocol error")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

// TestWriteSendLengthMismatch covers a backend whose reply batch has fewer
// entries than the request batch.
func TestWriteSendLengthMismatch(t *testing.T) {
	fake := backend.NewFake(func(batch []backend.Indexed[WriteOp]) ([]backend.Indexed[WriteReply], error) {
		if len(batch) < 2 {
			return nil, nil
		}
		return []backend.Indexed[WriteReply]{
			{Index: batch[0].Index, Value: WriteReply{Kind: WriteReplyPublished}},
		}, nil
	})
	w := &ResolverWrite{mux: newWriteMux(t, fake), writerAddr: "writer:1"}

	_, err := w.Send(context.Background(), []WriteOp{Publish(path.New("/a")), Publish(path.New("/b"))})
	if err == nil {
		t.Fatal("expected a protocol error for mismatched reply count")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}
