package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/path"
	"go.uber.org/zap"
)

func fakeWriteConstructor(handler func(batch []backend.Indexed[WriteOp]) ([]backend.Indexed[WriteReply], error)) backend.Constructor[WriteOp, WriteReply] {
	return func(cfg backend.Config, auth backend.Auth, writerAddr string, secrets *backend.Secrets) (backend.Connection[WriteOp, WriteReply], error) {
		return backend.NewFake(handler), nil
	}
}

func ackHandler(batch []backend.Indexed[WriteOp]) ([]backend.Indexed[WriteReply], error) {
	out := make([]backend.Indexed[WriteReply], len(batch))
	for i, it := range batch {
		kind := WriteReplyPublished
		if it.Value.Kind == WriteUnpublish || it.Value.Kind == WriteClear {
			kind = WriteReplyUnpublished
		}
		out[i] = backend.Indexed[WriteReply]{Index: it.Index, Value: WriteReply{Kind: kind}}
	}
	return out, nil
}

func TestResolverWritePublishUnpublish(t *testing.T) {
	w, err := NewResolverWrite(backend.Config{}, backend.AuthAnonymous, "writer:1", fakeWriteConstructor(ackHandler), zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolverWrite: %v", err)
	}

	if err := w.Publish(context.Background(), []path.Path{path.New("/svc/a"), path.New("/svc/b")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := w.Unpublish(context.Background(), []path.Path{path.New("/svc/a"), path.New("/svc/b")}); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
}

func TestResolverWritePublishBatchMismatchedAckNamesIndex(t *testing.T) {
	w, err := NewResolverWrite(backend.Config{}, backend.AuthAnonymous, "writer:1",
		fakeWriteConstructor(func(batch []backend.Indexed[WriteOp]) ([]backend.Indexed[WriteReply], error) {
			out := make([]backend.Indexed[WriteReply], len(batch))
			for i, it := range batch {
				kind := WriteReplyPublished
				if i == 1 {
					kind = WriteReplyUnpublished
				}
				out[i] = backend.Indexed[WriteReply]{Index: it.Index, Value: WriteReply{Kind: kind}}
			}
			return out, nil
		}), zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolverWrite: %v", err)
	}

	err = w.Publish(context.Background(), []path.Path{path.New("/svc/a"), path.New("/svc/b"), path.New("/svc/c")})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected a ProtocolError, got %v", err)
	}
	if protoErr.Index != 1 {
		t.Fatalf("expected the error to name index 1, got %d", protoErr.Index)
	}
}

func TestResolverWriteClearAndHeartbeat(t *testing.T) {
	w, err := NewResolverWrite(backend.Config{}, backend.AuthAnonymous, "writer:1", fakeWriteConstructor(ackHandler), zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolverWrite: %v", err)
	}
	if err := w.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := w.Heartbeat(context.Background()); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}
