package main

import (
	"sync"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/resolver"
)

// demoStore is an in-memory stand-in for the resolver wire protocol's
// default backend: a flat map from published path to the set of addresses
// that have published it. It never issues a referral, so it is only useful
// for exercising the read/write facades and the multiplexer's no-referral
// path; the referral-following path is exercised by resolver's own tests
// against backend.Fake instead.
type demoStore struct {
	mu         sync.Mutex
	publishers map[path.Path]map[string]bool
}

func newDemoStore() *demoStore {
	return &demoStore{publishers: make(map[path.Path]map[string]bool)}
}

func (s *demoStore) readConstructor() backend.Constructor[resolver.ReadOp, resolver.ReadReply] {
	return func(cfg backend.Config, auth backend.Auth, writerAddr string, secrets *backend.Secrets) (backend.Connection[resolver.ReadOp, resolver.ReadReply], error) {
		return &demoReadConn{store: s}, nil
	}
}

func (s *demoStore) writeConstructor() backend.Constructor[resolver.WriteOp, resolver.WriteReply] {
	return func(cfg backend.Config, auth backend.Auth, writerAddr string, secrets *backend.Secrets) (backend.Connection[resolver.WriteOp, resolver.WriteReply], error) {
		return &demoWriteConn{store: s, writerAddr: writerAddr}, nil
	}
}

func (s *demoStore) resolve(p path.Path) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := s.publishers[p]
	out := make([]string, 0, len(addrs))
	for a := range addrs {
		out = append(out, a)
	}
	return out
}

// children returns the direct children of p that have at least one
// publisher at or beneath them.
func (s *demoStore) children(p path.Path) []path.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[path.Path]bool)
	var out []path.Path
	for k := range s.publishers {
		if k == p {
			continue
		}
		cur := k
		for {
			dir, ok := cur.Dirname()
			if !ok {
				break
			}
			if dir == p {
				if !seen[cur] {
					seen[cur] = true
					out = append(out, cur)
				}
				break
			}
			cur = dir
		}
	}
	return out
}

func (s *demoStore) publish(p path.Path, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.publishers[p]
	if !ok {
		set = make(map[string]bool)
		s.publishers[p] = set
	}
	set[addr] = true
}

func (s *demoStore) unpublish(p path.Path, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.publishers[p]
	if !ok {
		return
	}
	delete(set, addr)
	if len(set) == 0 {
		delete(s.publishers, p)
	}
}

func (s *demoStore) clear(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, set := range s.publishers {
		delete(set, addr)
		if len(set) == 0 {
			delete(s.publishers, p)
		}
	}
}

type demoReadConn struct {
	store *demoStore
}

func (c *demoReadConn) Send(batch []backend.Indexed[resolver.ReadOp]) <-chan backend.Result[[]backend.Indexed[resolver.ReadReply]] {
	ch := make(chan backend.Result[[]backend.Indexed[resolver.ReadReply]], 1)
	go func() {
		out := make([]backend.Indexed[resolver.ReadReply], len(batch))
		for i, it := range batch {
			switch it.Value.Kind {
			case resolver.ReadResolve:
				out[i] = backend.Indexed[resolver.ReadReply]{Index: it.Index, Value: resolver.ReadReply{
					Kind:     resolver.ReplyResolved,
					Resolved: resolver.Resolution{Path: it.Value.P, Publishers: c.store.resolve(it.Value.P)},
				}}
			case resolver.ReadList:
				out[i] = backend.Indexed[resolver.ReadReply]{Index: it.Index, Value: resolver.ReadReply{
					Kind:  resolver.ReplyListPaths,
					Paths: c.store.children(it.Value.P),
				}}
			case resolver.ReadTable:
				out[i] = backend.Indexed[resolver.ReadReply]{Index: it.Index, Value: resolver.ReadReply{
					Kind:  resolver.ReplyTableDescriptor,
					Table: resolver.TableDescriptor{Rows: c.store.children(it.Value.P)},
				}}
			}
		}
		ch <- backend.Result[[]backend.Indexed[resolver.ReadReply]]{Value: out}
		close(ch)
	}()
	return ch
}

type demoWriteConn struct {
	store      *demoStore
	writerAddr string
}

func (c *demoWriteConn) Send(batch []backend.Indexed[resolver.WriteOp]) <-chan backend.Result[[]backend.Indexed[resolver.WriteReply]] {
	ch := make(chan backend.Result[[]backend.Indexed[resolver.WriteReply]], 1)
	go func() {
		out := make([]backend.Indexed[resolver.WriteReply], len(batch))
		for i, it := range batch {
			switch it.Value.Kind {
			case resolver.WritePublish, resolver.WritePublishDefault:
				c.store.publish(it.Value.P, c.writerAddr)
				out[i] = backend.Indexed[resolver.WriteReply]{Index: it.Index, Value: resolver.WriteReply{Kind: resolver.WriteReplyPublished}}
			case resolver.WriteUnpublish:
				c.store.unpublish(it.Value.P, c.writerAddr)
				out[i] = backend.Indexed[resolver.WriteReply]{Index: it.Index, Value: resolver.WriteReply{Kind: resolver.WriteReplyUnpublished}}
			case resolver.WriteClear:
				c.store.clear(c.writerAddr)
				out[i] = backend.Indexed[resolver.WriteReply]{Index: it.Index, Value: resolver.WriteReply{Kind: resolver.WriteReplyUnpublished}}
			case resolver.WriteHeartbeat:
				out[i] = backend.Indexed[resolver.WriteReply]{Index: it.Index, Value: resolver.WriteReply{Kind: resolver.WriteReplyPublished}}
			}
		}
		ch <- backend.Result[[]backend.Indexed[resolver.WriteReply]]{Value: out}
		close(ch)
	}()
	return ch
}
