// Package revision implements the logical clock of an incremental
// computation: a totally ordered, strictly increasing Revision.
//
// Two rules govern the clock:
//
//	R1 (epoch): a new Counter starts at Zero.
//	R2 (input change): before an input mutation becomes visible, advance
//	    the counter; the new value is greater than every value issued before.
//
// A cached value is stamped with the Revision at which it was last verified
// and the Revision at which it last changed. Comparing those stamps against
// the changed-at of its dependencies is what decides whether it is stale.
package revision

import (
	"strconv"
	"sync/atomic"
)

// Revision is an immutable logical timestamp. The zero value is Zero.
type Revision uint64

// Zero is the epoch revision every Counter starts at.
const Zero Revision = 0

// Less reports whether r was issued before other.
func (r Revision) Less(other Revision) bool { return r < other }

// Next returns the successor of r.
func (r Revision) Next() Revision { return r + 1 }

// String renders r as "r<N>".
func (r Revision) String() string { return "r" + strconv.FormatUint(uint64(r), 10) }

// Max returns the later of a and b.
func Max(a, b Revision) Revision {
	if a.Less(b) {
		return b
	}
	return a
}

// Counter hands out revisions. Safe for concurrent use; callers that need
// Advance to be ordered against other state changes must serialize it
// themselves.
type Counter struct {
	cur atomic.Uint64
}

// Current returns the present revision without advancing it.
func (c *Counter) Current() Revision { return Revision(c.cur.Load()) }

// Advance implements R2: mint a revision strictly greater than all
// previously issued ones, make it current and return it.
func (c *Counter) Advance() Revision { return Revision(c.cur.Add(1)) }
