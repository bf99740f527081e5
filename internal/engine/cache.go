package engine

import (
	"context"
	"fmt"

	"github.com/jtarleton/lorebook/internal/model"
)

// LoadBook flushes any pending write for the current book, then fetches and
// materializes the named book. The requested name becomes the active context
// before the fetch; if another load moves the context while the fetch is in
// flight, the stale result is discarded (last requested book wins).
func (e *Engine) LoadBook(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("load book: empty name")
	}
	if err := e.FlushPendingSave(ctx); err != nil {
		return fmt.Errorf("flush before load: %w", err)
	}

	e.mu.Lock()
	e.active = name
	e.loadGen++
	gen := e.loadGen
	e.mu.Unlock()

	remote, err := e.repo.LoadBook(ctx, name)
	depth := e.NoteDepth(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen || e.active != name {
		e.log.Warn("discarding stale load", "book", name, "active", e.active)
		return nil
	}
	if err != nil {
		e.entries = nil
		return fmt.Errorf("load book %q: %w", name, err)
	}

	entries := make([]model.Entry, 0, len(remote))
	for _, entry := range remote {
		entries = append(entries, entry)
	}
	SortEntries(entries, depth)
	e.entries = entries
	return nil
}

// UpdateEntry applies the mutator synchronously to the entry with the given
// uid, then (re)schedules the coalesced write against a snapshot of the
// active book and entries. Unknown uids are logged and ignored.
func (e *Engine) UpdateEntry(uid int, mutate func(*model.Entry)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == "" {
		e.log.Warn("update with no active book", "uid", uid)
		return
	}
	for i := range e.entries {
		if e.entries[i].UID == uid {
			mutate(&e.entries[i])
			e.coalescer.Schedule(e.active, model.CloneEntries(e.entries))
			return
		}
	}
	e.log.Warn("update for unknown entry", "book", e.active, "uid", uid)
}

// AddEntry creates an entry with default fields and the next free uid
// (max+1, 0 for an empty book), persists immediately, and resorts the cache.
func (e *Engine) AddEntry(ctx context.Context) (model.Entry, error) {
	if err := e.FlushPendingSave(ctx); err != nil {
		return model.Entry{}, fmt.Errorf("flush before add: %w", err)
	}

	e.mu.Lock()
	if e.active == "" {
		e.mu.Unlock()
		return model.Entry{}, fmt.Errorf("no active book")
	}
	entry := model.NewEntry(model.NextUID(e.entries))
	e.entries = append(e.entries, entry)
	e.mu.Unlock()

	if err := e.persistNow(ctx); err != nil {
		return entry, err
	}
	e.resort(ctx)
	return entry, nil
}

// DeleteEntries removes the given uids from the cache and persists
// immediately.
func (e *Engine) DeleteEntries(ctx context.Context, uids ...int) error {
	if err := e.FlushPendingSave(ctx); err != nil {
		return fmt.Errorf("flush before delete: %w", err)
	}

	drop := make(map[int]bool, len(uids))
	for _, uid := range uids {
		drop[uid] = true
	}

	e.mu.Lock()
	if e.active == "" {
		e.mu.Unlock()
		return fmt.Errorf("no active book")
	}
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if !drop[entry.UID] {
			kept = append(kept, entry)
		}
	}
	e.entries = kept
	e.mu.Unlock()

	return e.persistNow(ctx)
}

// Reorder moves the entry at index from to index to, keeping the user's
// explicit arrangement, and persists immediately.
func (e *Engine) Reorder(ctx context.Context, from, to int) error {
	e.mu.Lock()
	if from < 0 || from >= len(e.entries) || to < 0 || to >= len(e.entries) {
		n := len(e.entries)
		e.mu.Unlock()
		return fmt.Errorf("reorder: index out of range (%d -> %d of %d)", from, to, n)
	}
	if from != to {
		entry := e.entries[from]
		e.entries = append(e.entries[:from], e.entries[from+1:]...)
		e.entries = append(e.entries, model.Entry{})
		copy(e.entries[to+1:], e.entries[to:])
		e.entries[to] = entry
	}
	e.mu.Unlock()

	return e.persistNow(ctx)
}

// SortByPriority re-derives the cache order from the score function and
// persists immediately.
func (e *Engine) SortByPriority(ctx context.Context) error {
	depth := e.NoteDepth(ctx)
	e.mu.Lock()
	if e.active == "" {
		e.mu.Unlock()
		return fmt.Errorf("no active book")
	}
	SortEntries(e.entries, depth)
	e.mu.Unlock()

	return e.persistNow(ctx)
}

// CreateBook creates a new, empty book.
func (e *Engine) CreateBook(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("create book: empty name")
	}
	return e.repo.CreateBook(ctx, name)
}

// DeleteBook removes a book. Deleting the active book flushes first, then
// clears the cache.
func (e *Engine) DeleteBook(ctx context.Context, name string) error {
	if e.ActiveBook() == name {
		if err := e.FlushPendingSave(ctx); err != nil {
			return fmt.Errorf("flush before delete: %w", err)
		}
	}
	if err := e.repo.DeleteBook(ctx, name); err != nil {
		return err
	}
	e.mu.Lock()
	if e.active == name {
		e.active = ""
		e.entries = nil
		e.loadGen++
	}
	e.mu.Unlock()
	return nil
}

// persistNow writes the whole current cache immediately. Any pending
// coalesced batch is discarded first: it is an older snapshot of the same
// cache, subsumed by this write.
func (e *Engine) persistNow(ctx context.Context) error {
	e.coalescer.Discard()

	e.mu.Lock()
	name := e.active
	snapshot := model.CloneEntries(e.entries)
	e.mu.Unlock()

	return e.saveBookEntries(ctx, name, snapshot)
}

// resort re-derives the cache order from the score function.
func (e *Engine) resort(ctx context.Context) {
	depth := e.NoteDepth(ctx)
	e.mu.Lock()
	SortEntries(e.entries, depth)
	e.mu.Unlock()
}
