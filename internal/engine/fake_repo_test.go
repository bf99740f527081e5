package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jtarleton/lorebook/internal/model"
	"github.com/jtarleton/lorebook/internal/repo"
)

// fakeRepo is an in-memory Repository. Individual loads can be gated on a
// channel to force a chosen resolution order in race tests, and binding
// writes can be made to fail.
type fakeRepo struct {
	mu    sync.Mutex
	books map[string]map[int]model.Entry

	saves []saveCall

	loadGate map[string]chan struct{}

	charKey   string
	chatID    string
	primary   map[string]string
	aux       map[string][]string
	chatBook  map[string]string
	global    []string
	noteDepth *float64

	failSetChat    error
	failSetPrimary error

	meta      map[string]model.BookMeta
	metaSaves int
}

type saveCall struct {
	name    string
	entries map[int]model.Entry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		books:    map[string]map[int]model.Entry{},
		loadGate: map[string]chan struct{}{},
		primary:  map[string]string{},
		aux:      map[string][]string{},
		chatBook: map[string]string{},
		meta:     map[string]model.BookMeta{},
	}
}

func (f *fakeRepo) setBook(name string, entries ...model.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := make(map[int]model.Entry, len(entries))
	for _, e := range entries {
		m[e.UID] = e
	}
	f.books[name] = m
}

// gateLoad makes LoadBook(name) block until the returned channel is closed.
func (f *fakeRepo) gateLoad(name string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.loadGate[name] = ch
	return ch
}

func cloneBook(m map[int]model.Entry) map[int]model.Entry {
	out := make(map[int]model.Entry, len(m))
	for uid, e := range m {
		out[uid] = e.Clone()
	}
	return out
}

func (f *fakeRepo) ListBookNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.books {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRepo) LoadBook(ctx context.Context, name string) (map[int]model.Entry, error) {
	f.mu.Lock()
	gate := f.loadGate[name]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[name]
	if !ok {
		return nil, fmt.Errorf("load %q: %w", name, repo.ErrNotFound)
	}
	return cloneBook(book), nil
}

func (f *fakeRepo) SaveBook(ctx context.Context, name string, entries map[int]model.Entry, createIfMissing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[name]; !ok {
		if !createIfMissing {
			return fmt.Errorf("save %q: %w", name, repo.ErrNotFound)
		}
	}
	f.books[name] = cloneBook(entries)
	f.saves = append(f.saves, saveCall{name: name, entries: cloneBook(entries)})
	return nil
}

func (f *fakeRepo) CreateBook(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[name]; ok {
		return fmt.Errorf("book %q already exists", name)
	}
	f.books[name] = map[int]model.Entry{}
	return nil
}

func (f *fakeRepo) DeleteBook(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[name]; !ok {
		return fmt.Errorf("delete %q: %w", name, repo.ErrNotFound)
	}
	delete(f.books, name)
	return nil
}

func (f *fakeRepo) CurrentCharacter(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charKey, nil
}

func (f *fakeRepo) ChatNoteDepth(ctx context.Context) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noteDepth == nil {
		return 0, false, nil
	}
	return *f.noteDepth, true, nil
}

func (f *fakeRepo) PrimaryBinding(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary[f.charKey], nil
}

func (f *fakeRepo) SetPrimaryBinding(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetPrimary != nil {
		return f.failSetPrimary
	}
	if f.charKey == "" {
		return nil
	}
	if name == "" {
		delete(f.primary, f.charKey)
		return nil
	}
	f.primary[f.charKey] = name
	return nil
}

func (f *fakeRepo) AuxiliaryBindings(ctx context.Context, characterKey string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aux[characterKey]...), nil
}

func (f *fakeRepo) SetAuxiliaryBindings(ctx context.Context, characterKey string, books []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aux[characterKey] = append([]string(nil), books...)
	return nil
}

func (f *fakeRepo) ChatBinding(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatBook[f.chatID], nil
}

func (f *fakeRepo) SetChatBinding(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetChat != nil {
		return f.failSetChat
	}
	if f.chatID == "" {
		return nil
	}
	if name == "" {
		delete(f.chatBook, f.chatID)
		return nil
	}
	f.chatBook[f.chatID] = name
	return nil
}

func (f *fakeRepo) GlobalBindings(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.global...), nil
}

func (f *fakeRepo) ToggleGlobalBinding(ctx context.Context, name string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.global[:0]
	for _, b := range f.global {
		if b != name {
			kept = append(kept, b)
		}
	}
	f.global = kept
	if enabled {
		f.global = append(f.global, name)
	}
	return nil
}

func (f *fakeRepo) PrimaryBindingsByBook(ctx context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string)
	for char, book := range f.primary {
		out[book] = append(out[book], char)
	}
	return out, nil
}

func (f *fakeRepo) Metadata(ctx context.Context) (map[string]model.BookMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.BookMeta, len(f.meta))
	for k, v := range f.meta {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRepo) SaveMetadata(ctx context.Context, meta map[string]model.BookMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta = make(map[string]model.BookMeta, len(meta))
	for k, v := range meta {
		f.meta[k] = v
	}
	f.metaSaves++
	return nil
}

func (f *fakeRepo) Close() error { return nil }

func (f *fakeRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeRepo) lastSave() (saveCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return saveCall{}, false
	}
	return f.saves[len(f.saves)-1], true
}
