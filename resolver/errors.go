package resolver

import "fmt"

// ProtocolError reports a reply batch that does not match the shape its
// request batch demands: a reply count different from the request count, or
// a reply at some index whose kind cannot correspond to the request kind at
// that index (for example a write batch answered with a List reply).
type ProtocolError struct {
	Op    string
	Index int
	Want  string
	Got   string
}

func (e *ProtocolError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("protocol violation in %s: want %s, got %s", e.Op, e.Want, e.Got)
	}
	return fmt.Sprintf("protocol violation in %s at index %d: want %s, got %s", e.Op, e.Index, e.Want, e.Got)
}

// errReferralDepth reports that a Send call followed more referrals than
// MaxReferrals permits without reaching a terminal, non-referral reply for
// every operation in the batch.
func errReferralDepth(max int) error {
	return fmt.Errorf("exceeded maximum referral depth (%d) without resolving every operation", max)
}
