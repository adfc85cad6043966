package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/path"
	"go.uber.org/zap"
)

func fakeReadConstructor(handler func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error)) backend.Constructor[ReadOp, ReadReply] {
	return func(cfg backend.Config, auth backend.Auth, writerAddr string, secrets *backend.Secrets) (backend.Connection[ReadOp, ReadReply], error) {
		return backend.NewFake(handler), nil
	}
}

func TestResolverReadResolve(t *testing.T) {
	r, err := NewResolverRead(backend.Config{Addrs: []string{"default:1"}}, backend.AuthAnonymous,
		fakeReadConstructor(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
			out := make([]backend.Indexed[ReadReply], len(batch))
			for i, it := range batch {
				out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{
					Kind: ReplyResolved, Resolved: Resolution{Path: it.Value.P, Publishers: []string{"p:1"}},
				}}
			}
			return out, nil
		}), zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolverRead: %v", err)
	}

	res, err := r.Resolve(context.Background(), []path.Path{path.New("/a/b"), path.New("/a/c")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(res))
	}
	if res[0].Path != path.New("/a/b") || res[1].Path != path.New("/a/c") {
		t.Fatalf("resolutions not in request order: %#v", res)
	}
	if len(res[0].Publishers) != 1 || res[0].Publishers[0] != "p:1" {
		t.Fatalf("unexpected resolution: %#v", res[0])
	}
}

func TestResolverReadListWrongReplyKindIsProtocolError(t *testing.T) {
	r, err := NewResolverRead(backend.Config{}, backend.AuthAnonymous,
		fakeReadConstructor(func(batch []backend.Indexed[ReadOp]) ([]backend.Indexed[ReadReply], error) {
			out := make([]backend.Indexed[ReadReply], len(batch))
			for i, it := range batch {
				out[i] = backend.Indexed[ReadReply]{Index: it.Index, Value: ReadReply{Kind: ReplyTableDescriptor}}
			}
			return out, nil
		}), zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolverRead: %v", err)
	}

	_, err = r.List(context.Background(), path.New("/a"))
	if err == nil {
		t.Fatal("expected a protocol error when List is answered with a Table reply")
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}
