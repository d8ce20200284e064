package replay

import "sync/atomic"

// Cursor is a position in [0, n) shared by every caller of one feed.
type Cursor struct {
	n   int64
	pos atomic.Int64
}

func NewCursor(n int) *Cursor {
	if n < 1 {
		n = 1
	}
	return &Cursor{n: int64(n)}
}

func (c *Cursor) Peek() int {
	return int(c.pos.Load())
}

// AdvanceAndGet moves the cursor one step (mod n) and returns the position it
// held before the move. Concurrent callers each get a distinct position.
func (c *Cursor) AdvanceAndGet() int {
	for {
		cur := c.pos.Load()
		if c.pos.CompareAndSwap(cur, (cur+1)%c.n) {
			return int(cur)
		}
	}
}
