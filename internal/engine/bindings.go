package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/jtarleton/lorebook/internal/model"
)

// Scope identifies one of the four binding relationships between a book and
// the host context.
type Scope int

const (
	ScopePrimary Scope = iota
	ScopeAuxiliary
	ScopeChat
	ScopeGlobal
)

var scopeNames = map[Scope]string{
	ScopePrimary:   "primary",
	ScopeAuxiliary: "auxiliary",
	ScopeChat:      "chat",
	ScopeGlobal:    "global",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope parses a scope name.
func ParseScope(name string) (Scope, error) {
	for s, n := range scopeNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown binding scope %q", name)
}

// SetBinding binds (enabled) or unbinds the named book in the given scope.
//
//   - primary: single slot on the active character; unsetting assigns none.
//   - auxiliary: ordered list keyed by the character's stable key; add or
//     remove by value.
//   - chat: single slot on the active chat; unsetting only clears the slot
//     when it currently holds the named book.
//   - global: set membership toggle.
func (e *Engine) SetBinding(ctx context.Context, scope Scope, book string, enabled bool) error {
	switch scope {
	case ScopePrimary:
		name := ""
		if enabled {
			name = book
		}
		return e.repo.SetPrimaryBinding(ctx, name)

	case ScopeAuxiliary:
		charKey, err := e.repo.CurrentCharacter(ctx)
		if err != nil {
			return err
		}
		if charKey == "" {
			e.log.Warn("auxiliary binding skipped: no active character", "book", book)
			return nil
		}
		books, err := e.repo.AuxiliaryBindings(ctx, charKey)
		if err != nil {
			return err
		}
		if enabled {
			if !slices.Contains(books, book) {
				books = append(books, book)
			}
		} else {
			books = slices.DeleteFunc(books, func(b string) bool { return b == book })
		}
		return e.repo.SetAuxiliaryBindings(ctx, charKey, books)

	case ScopeChat:
		if enabled {
			return e.repo.SetChatBinding(ctx, book)
		}
		current, err := e.repo.ChatBinding(ctx)
		if err != nil {
			return err
		}
		if current == book {
			return e.repo.SetChatBinding(ctx, "")
		}
		return nil

	case ScopeGlobal:
		return e.repo.ToggleGlobalBinding(ctx, book, enabled)
	}
	return fmt.Errorf("unhandled binding scope %d", int(scope))
}

// Bindings snapshots every binding scope for the active context.
func (e *Engine) Bindings(ctx context.Context) (model.BindingState, error) {
	var state model.BindingState

	primary, err := e.repo.PrimaryBinding(ctx)
	if err != nil {
		return state, err
	}
	state.Character.Primary = primary

	charKey, err := e.repo.CurrentCharacter(ctx)
	if err != nil {
		return state, err
	}
	if charKey != "" {
		additional, err := e.repo.AuxiliaryBindings(ctx, charKey)
		if err != nil {
			return state, err
		}
		state.Character.Additional = additional
	}

	state.Chat, err = e.repo.ChatBinding(ctx)
	if err != nil {
		return state, err
	}
	state.Global, err = e.repo.GlobalBindings(ctx)
	if err != nil {
		return state, err
	}
	return state, nil
}

// RenameBook renames a book: copy the content under the new name, migrate
// every scope that references the old name, then delete the old book.
//
// Migration is sequential and best-effort, not transactional. A scope that
// fails to migrate is logged and reported in the returned warnings, and the
// old book is deleted regardless, so a failed scope can be left referencing
// a name that no longer exists.
func (e *Engine) RenameBook(ctx context.Context, oldName, newName string) (warnings []error, err error) {
	if newName == "" || newName == oldName {
		return nil, fmt.Errorf("rename %q: invalid target name %q", oldName, newName)
	}
	if err := e.FlushPendingSave(ctx); err != nil {
		return nil, fmt.Errorf("flush before rename: %w", err)
	}

	content, err := e.repo.LoadBook(ctx, oldName)
	if err != nil {
		return nil, err
	}
	if err := e.repo.SaveBook(ctx, newName, content, true); err != nil {
		return nil, fmt.Errorf("create %q: %w", newName, err)
	}

	migrate := func(scope Scope, step func() error) {
		if err := step(); err != nil {
			e.log.Warn("binding migration failed", "scope", scope.String(),
				"old", oldName, "new", newName, "err", err)
			warnings = append(warnings, fmt.Errorf("%s: %w", scope, err))
		}
	}

	migrate(ScopePrimary, func() error {
		primary, err := e.repo.PrimaryBinding(ctx)
		if err != nil {
			return err
		}
		if primary != oldName {
			return nil
		}
		return e.SetBinding(ctx, ScopePrimary, newName, true)
	})

	migrate(ScopeAuxiliary, func() error {
		charKey, err := e.repo.CurrentCharacter(ctx)
		if err != nil || charKey == "" {
			return err
		}
		books, err := e.repo.AuxiliaryBindings(ctx, charKey)
		if err != nil {
			return err
		}
		if !slices.Contains(books, oldName) {
			return nil
		}
		if err := e.SetBinding(ctx, ScopeAuxiliary, oldName, false); err != nil {
			return err
		}
		return e.SetBinding(ctx, ScopeAuxiliary, newName, true)
	})

	migrate(ScopeGlobal, func() error {
		books, err := e.repo.GlobalBindings(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(books, oldName) {
			return nil
		}
		if err := e.SetBinding(ctx, ScopeGlobal, oldName, false); err != nil {
			return err
		}
		return e.SetBinding(ctx, ScopeGlobal, newName, true)
	})

	migrate(ScopeChat, func() error {
		chat, err := e.repo.ChatBinding(ctx)
		if err != nil {
			return err
		}
		if chat != oldName {
			return nil
		}
		return e.SetBinding(ctx, ScopeChat, newName, true)
	})

	// The old book goes away even when a scope failed to migrate.
	if err := e.repo.DeleteBook(ctx, oldName); err != nil {
		return warnings, fmt.Errorf("delete old book %q: %w", oldName, err)
	}

	e.mu.Lock()
	if e.active == oldName {
		e.active = ""
		e.entries = nil
		e.loadGen++
	}
	e.mu.Unlock()
	return warnings, nil
}
