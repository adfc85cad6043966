package resolver

import (
	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/router"
)

// ReadOpKind discriminates the three read operation shapes.
type ReadOpKind int

const (
	ReadList ReadOpKind = iota
	ReadTable
	ReadResolve
)

// ReadOp is one read request: List, Table, or Resolve, each addressed by a
// path. Unlike write operations, every read operation carries a path.
type ReadOp struct {
	Kind ReadOpKind
	P    path.Path
}

// List builds a List(path) read operation.
func List(p path.Path) ReadOp { return ReadOp{Kind: ReadList, P: p} }

// Table builds a Table(path) read operation describing a tabular subtree.
func Table(p path.Path) ReadOp { return ReadOp{Kind: ReadTable, P: p} }

// Resolve builds a Resolve(path) read operation.
func Resolve(p path.Path) ReadOp { return ReadOp{Kind: ReadResolve, P: p} }

// Path implements router.Pathed.
func (o ReadOp) Path() (path.Path, bool) { return o.P, true }

func (o ReadOp) String() string {
	switch o.Kind {
	case ReadList:
		return "List(" + string(o.P) + ")"
	case ReadTable:
		return "Table(" + string(o.P) + ")"
	case ReadResolve:
		return "Resolve(" + string(o.P) + ")"
	default:
		return "ReadOp(?)"
	}
}

// Resolution is the resolved publisher set for a path.
type Resolution struct {
	Path       path.Path
	Publishers []string
}

// TableDescriptor describes a tabular subtree: the set of rows (child
// paths with data) and column names present under them.
type TableDescriptor struct {
	Rows    []path.Path
	Columns []string
}

// ReadReplyKind discriminates ReadReply payload shapes.
type ReadReplyKind int

const (
	ReplyResolved ReadReplyKind = iota
	ReplyListPaths
	ReplyTableDescriptor
	ReplyReadReferral
	ReplyReadError
)

// ReadReply is one reply to a ReadOp.
type ReadReply struct {
	Kind     ReadReplyKind
	Resolved Resolution
	Paths    []path.Path
	Table    TableDescriptor
	Referral router.Referral
	Err      error
}

// AsReferral implements the resolver's internal replied interface: a
// Referral reply means "this operation belongs to another cluster".
func (r ReadReply) AsReferral() (router.Referral, bool) {
	if r.Kind == ReplyReadReferral {
		return r.Referral, true
	}
	return router.Referral{}, false
}

func (r ReadReply) String() string {
	switch r.Kind {
	case ReplyResolved:
		return "Resolved"
	case ReplyListPaths:
		return "List"
	case ReplyTableDescriptor:
		return "Table"
	case ReplyReadReferral:
		return "Referral(" + string(r.Referral.Path) + ")"
	case ReplyReadError:
		return "Error(" + r.Err.Error() + ")"
	default:
		return "ReadReply(?)"
	}
}

// WriteOpKind discriminates write operation shapes.
type WriteOpKind int

const (
	WritePublish WriteOpKind = iota
	WritePublishDefault
	WriteUnpublish
	WriteClear
	WriteHeartbeat
)

// WriteOp is one write request. Clear and Heartbeat carry no path and
// always target the default backend.
type WriteOp struct {
	Kind    WriteOpKind
	P       path.Path
	hasPath bool
}

// Publish builds a Publish(path) write operation.
func Publish(p path.Path) WriteOp { return WriteOp{Kind: WritePublish, P: p, hasPath: true} }

// PublishDefault builds a PublishDefault(path) write operation.
func PublishDefault(p path.Path) WriteOp {
	return WriteOp{Kind: WritePublishDefault, P: p, hasPath: true}
}

// Unpublish builds an Unpublish(path) write operation.
func Unpublish(p path.Path) WriteOp { return WriteOp{Kind: WriteUnpublish, P: p, hasPath: true} }

// ClearOp builds a pathless Clear write operation.
func ClearOp() WriteOp { return WriteOp{Kind: WriteClear} }

// HeartbeatOp builds a pathless Heartbeat write operation.
func HeartbeatOp() WriteOp { return WriteOp{Kind: WriteHeartbeat} }

// Path implements router.Pathed.
func (o WriteOp) Path() (path.Path, bool) { return o.P, o.hasPath }

func (o WriteOp) String() string {
	switch o.Kind {
	case WritePublish:
		return "Publish(" + string(o.P) + ")"
	case WritePublishDefault:
		return "PublishDefault(" + string(o.P) + ")"
	case WriteUnpublish:
		return "Unpublish(" + string(o.P) + ")"
	case WriteClear:
		return "Clear"
	case WriteHeartbeat:
		return "Heartbeat"
	default:
		return "WriteOp(?)"
	}
}

// WriteReplyKind discriminates WriteReply payload shapes.
type WriteReplyKind int

const (
	WriteReplyPublished WriteReplyKind = iota
	WriteReplyUnpublished
	WriteReplyWriteReferral
	WriteReplyWriteError
)

// WriteReply is one reply to a WriteOp.
type WriteReply struct {
	Kind     WriteReplyKind
	Referral router.Referral
	Err      error
}

// AsReferral implements the resolver's internal replied interface.
func (r WriteReply) AsReferral() (router.Referral, bool) {
	if r.Kind == WriteReplyWriteReferral {
		return r.Referral, true
	}
	return router.Referral{}, false
}

func (r WriteReply) String() string {
	switch r.Kind {
	case WriteReplyPublished:
		return "Published"
	case WriteReplyUnpublished:
		return "Unpublished"
	case WriteReplyWriteReferral:
		return "Referral(" + string(r.Referral.Path) + ")"
	case WriteReplyWriteError:
		return "Error(" + r.Err.Error() + ")"
	default:
		return "WriteReply(?)"
	}
}
