package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jtarleton/lorebook/internal/model"
	"github.com/jtarleton/lorebook/internal/repo"
)

// MetadataStore manages the per-book metadata blob (group, note, tags,
// pinned). All books share one blob; updates are read-modify-write against
// it, and persistence is delegated to a debounced scheduler so rapid updates
// coalesce into one write. Concurrent writers of the same blob elsewhere can
// be clobbered; that is accepted.
type MetadataStore struct {
	repo  repo.Repository
	log   *slog.Logger
	sched Scheduler
	delay time.Duration

	mu     sync.Mutex
	blob   map[string]model.BookMeta
	loaded bool
}

func newMetadataStore(r repo.Repository, log *slog.Logger, sched Scheduler, delay time.Duration) *MetadataStore {
	return &MetadataStore{repo: r, log: log, sched: sched, delay: delay}
}

func (m *MetadataStore) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	blob, err := m.repo.Metadata(ctx)
	if err != nil {
		return err
	}
	m.blob = blob
	m.loaded = true
	return nil
}

// UpdateMeta applies the mutator to the named book's metadata, initializing
// it first when absent, and schedules the blob save.
func (m *MetadataStore) UpdateMeta(ctx context.Context, book string, mutate func(*model.BookMeta)) error {
	m.mu.Lock()
	if err := m.loadLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	meta, ok := m.blob[book]
	if !ok {
		meta = model.NewBookMeta()
	}
	mutate(&meta)
	m.blob[book] = meta
	m.mu.Unlock()

	m.sched.Arm(m.delay, func() {
		if err := m.Flush(context.Background()); err != nil {
			m.log.Error("metadata save failed", "err", err)
		}
	})
	return nil
}

// Get returns the named book's metadata; ok is false when none exists.
func (m *MetadataStore) Get(ctx context.Context, book string) (meta model.BookMeta, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return model.BookMeta{}, false, err
	}
	meta, ok = m.blob[book]
	return meta, ok, nil
}

// All returns a copy of the whole metadata blob.
func (m *MetadataStore) All(ctx context.Context) (map[string]model.BookMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]model.BookMeta, len(m.blob))
	for k, v := range m.blob {
		out[k] = v
	}
	return out, nil
}

// Flush persists the blob now, cancelling any scheduled save.
func (m *MetadataStore) Flush(ctx context.Context) error {
	m.sched.Cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return nil
	}
	return m.repo.SaveMetadata(ctx, m.blob)
}
