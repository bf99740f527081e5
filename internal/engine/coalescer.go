package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jtarleton/lorebook/internal/model"
)

// saveFunc performs the persisted write for a coalesced batch.
type saveFunc func(ctx context.Context, book string, entries []model.Entry) error

// SaveCoalescer batches rapid cache mutations into one deferred write. Each
// Schedule replaces the pending batch and re-arms the timer, so a continuous
// edit stream postpones the write until input pauses for the full delay.
//
// A generation token is captured at arm time and compared when the timer
// fires, so a fired task that lost the race against a newer Schedule or a
// Flush writes nothing.
type SaveCoalescer struct {
	sched Scheduler
	delay time.Duration
	save  saveFunc

	mu      sync.Mutex
	gen     uint64
	pending *pendingSave
}

type pendingSave struct {
	book    string
	entries []model.Entry
	gen     uint64
}

func newSaveCoalescer(sched Scheduler, delay time.Duration, save saveFunc) *SaveCoalescer {
	return &SaveCoalescer{sched: sched, delay: delay, save: save}
}

// Schedule replaces any pending batch with a snapshot of (book, entries) and
// re-arms the delay.
func (c *SaveCoalescer) Schedule(book string, entries []model.Entry) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.pending = &pendingSave{book: book, entries: entries, gen: gen}
	c.mu.Unlock()

	c.sched.Arm(c.delay, func() { c.fire(gen) })
}

func (c *SaveCoalescer) fire(gen uint64) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.gen != gen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	c.save(context.Background(), p.book, p.entries)
}

// Flush cancels the timer and performs the pending write before returning.
// A no-op when nothing is pending.
func (c *SaveCoalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	if p != nil {
		c.gen++ // invalidate any fired-but-unstarted timer task
	}
	c.mu.Unlock()
	c.sched.Cancel()

	if p == nil {
		return nil
	}
	return c.save(ctx, p.book, p.entries)
}

// Discard drops the pending batch without writing. Used when an immediate
// full-cache write is about to supersede it.
func (c *SaveCoalescer) Discard() {
	c.mu.Lock()
	if c.pending != nil {
		c.gen++
		c.pending = nil
	}
	c.mu.Unlock()
	c.sched.Cancel()
}

// HasPending reports whether a write is currently scheduled.
func (c *SaveCoalescer) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}
