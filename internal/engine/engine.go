// Package engine implements the entry cache and synchronization engine: it
// materializes the entries of one active book, coalesces bursts of edits
// into single persisted writes, guards overlapping asynchronous loads with
// generation tokens, and keeps the four binding scopes consistent.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jtarleton/lorebook/internal/model"
	"github.com/jtarleton/lorebook/internal/repo"
)

// DefaultSaveDelay is how long the coalescer waits after the last edit
// before persisting.
const DefaultSaveDelay = 300 * time.Millisecond

// DefaultMetaSaveDelay is the debounce for the metadata blob save.
const DefaultMetaSaveDelay = time.Second

// Options configures an Engine. Zero values select defaults.
type Options struct {
	SaveDelay        time.Duration
	MetaSaveDelay    time.Duration
	DefaultNoteDepth float64
	Logger           *slog.Logger

	// Schedulers may be replaced in tests with deterministic ones.
	SaveScheduler Scheduler
	MetaScheduler Scheduler
}

// Engine is the synchronization engine over one repository. All cache state
// lives behind one mutex; repository calls happen unlocked, and every
// asynchronous resume re-checks the load generation before touching state.
type Engine struct {
	repo             repo.Repository
	log              *slog.Logger
	defaultNoteDepth float64

	mu      sync.Mutex
	active  string
	entries []model.Entry
	loadGen uint64

	coalescer *SaveCoalescer
	meta      *MetadataStore
}

// New constructs an engine over the given repository.
func New(r repo.Repository, opts Options) *Engine {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	if opts.MetaSaveDelay <= 0 {
		opts.MetaSaveDelay = DefaultMetaSaveDelay
	}
	if opts.DefaultNoteDepth == 0 {
		opts.DefaultNoteDepth = DefaultAuthorNoteDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SaveScheduler == nil {
		opts.SaveScheduler = NewTimerScheduler()
	}
	if opts.MetaScheduler == nil {
		opts.MetaScheduler = NewTimerScheduler()
	}

	e := &Engine{
		repo:             r,
		log:              opts.Logger,
		defaultNoteDepth: opts.DefaultNoteDepth,
	}
	e.coalescer = newSaveCoalescer(opts.SaveScheduler, opts.SaveDelay, e.coalescedSave)
	e.meta = newMetadataStore(r, opts.Logger, opts.MetaScheduler, opts.MetaSaveDelay)
	return e
}

// Meta exposes the per-book metadata store.
func (e *Engine) Meta() *MetadataStore {
	return e.meta
}

// ActiveBook returns the name of the currently materialized book, "" when
// none is loaded.
func (e *Engine) ActiveBook() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Entries returns a copy of the active cache in its current order.
func (e *Engine) Entries() []model.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneEntries(e.entries)
}

// ListBookNames lists all book names, sorted.
func (e *Engine) ListBookNames(ctx context.Context) ([]string, error) {
	return e.repo.ListBookNames(ctx)
}

// BoundBooks maps each book to the character keys bound to it as primary.
func (e *Engine) BoundBooks(ctx context.Context) (map[string][]string, error) {
	return e.repo.PrimaryBindingsByBook(ctx)
}

// NoteDepth resolves the author-note depth: the active chat's configured
// value when present, else the engine default.
func (e *Engine) NoteDepth(ctx context.Context) float64 {
	if d, ok, err := e.repo.ChatNoteDepth(ctx); err == nil && ok {
		return d
	}
	return e.defaultNoteDepth
}

// FlushPendingSave cancels the debounce timer and performs any pending write
// before returning. It must run before any operation that invalidates the
// cache context: switching books, deleting the current book, renaming it.
func (e *Engine) FlushPendingSave(ctx context.Context) error {
	return e.coalescer.Flush(ctx)
}

// HasPendingSave reports whether edits are waiting to be persisted.
func (e *Engine) HasPendingSave() bool {
	return e.coalescer.HasPending()
}

// Close flushes pending entry and metadata writes. It does not close the
// repository.
func (e *Engine) Close(ctx context.Context) error {
	saveErr := e.FlushPendingSave(ctx)
	metaErr := e.meta.Flush(ctx)
	return errors.Join(saveErr, metaErr)
}

// coalescedSave is the coalescer's write callback. Failures are logged, not
// retried; the cache keeps the unsaved state.
func (e *Engine) coalescedSave(ctx context.Context, book string, entries []model.Entry) error {
	err := e.saveBookEntries(ctx, book, entries)
	if err != nil {
		e.log.Error("coalesced save failed", "book", book, "err", err)
	}
	return err
}

// saveBookEntries persists entries with a field-level last-writer-wins merge
// per entry: the current remote state is fetched first, and for every local
// entry the known local fields win while remote-only fields are preserved.
// Remote entries absent from the local set are dropped (that is how entry
// deletion propagates).
func (e *Engine) saveBookEntries(ctx context.Context, name string, entries []model.Entry) error {
	if name == "" {
		e.log.Warn("save aborted: no book name")
		return nil
	}

	remote, err := e.repo.LoadBook(ctx, name)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("fetch remote %q: %w", name, err)
	}

	merged := make(map[int]model.Entry, len(entries))
	for _, local := range entries {
		merged[local.UID] = model.MergeEntry(remote[local.UID], local)
	}

	if err := e.repo.SaveBook(ctx, name, merged, false); err != nil {
		return fmt.Errorf("save book %q: %w", name, err)
	}
	return nil
}
