// Package repo provides the book repository interface and its SQLite
// implementation.
package repo

import (
	"context"
	"errors"

	"github.com/jtarleton/lorebook/internal/model"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Repository is the persistence contract the engine consumes: book
// load/save/create/delete/list, the four binding scopes, and the metadata
// blob. Primary and chat bindings are resolved against the implementation's
// current session (active character and chat).
type Repository interface {
	ListBookNames(ctx context.Context) ([]string, error)
	LoadBook(ctx context.Context, name string) (map[int]model.Entry, error)
	SaveBook(ctx context.Context, name string, entries map[int]model.Entry, createIfMissing bool) error
	CreateBook(ctx context.Context, name string) error
	DeleteBook(ctx context.Context, name string) error

	// CurrentCharacter is the stable key of the active character, "" when
	// no character is active.
	CurrentCharacter(ctx context.Context) (string, error)
	// ChatNoteDepth is the author-note depth configured for the active
	// chat; ok is false when none is configured.
	ChatNoteDepth(ctx context.Context) (depth float64, ok bool, err error)

	PrimaryBinding(ctx context.Context) (string, error)
	SetPrimaryBinding(ctx context.Context, name string) error
	AuxiliaryBindings(ctx context.Context, characterKey string) ([]string, error)
	SetAuxiliaryBindings(ctx context.Context, characterKey string, books []string) error
	ChatBinding(ctx context.Context) (string, error)
	SetChatBinding(ctx context.Context, name string) error
	GlobalBindings(ctx context.Context) ([]string, error)
	ToggleGlobalBinding(ctx context.Context, name string, enabled bool) error

	// PrimaryBindingsByBook maps each book to the character keys that have
	// it as their primary binding.
	PrimaryBindingsByBook(ctx context.Context) (map[string][]string, error)

	Metadata(ctx context.Context) (map[string]model.BookMeta, error)
	SaveMetadata(ctx context.Context, meta map[string]model.BookMeta) error

	Close() error
}
