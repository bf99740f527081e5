package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jtarleton/lorebook/internal/model"
	"github.com/jtarleton/lorebook/internal/repo"
)

func TestParseScope(t *testing.T) {
	for _, name := range []string{"primary", "auxiliary", "chat", "global"} {
		s, err := ParseScope(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if s.String() != name {
			t.Errorf("round trip %q -> %q", name, s.String())
		}
	}
	if _, err := ParseScope("persona"); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestSetBindingPrimary(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.charKey = "alice"
	e, _, _ := newTestEngine(t, f)

	if err := e.SetBinding(ctx, ScopePrimary, "alpha", true); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got, _ := f.PrimaryBinding(ctx); got != "alpha" {
		t.Fatalf("expected primary alpha, got %q", got)
	}

	// The slot holds one book; binding another replaces it.
	if err := e.SetBinding(ctx, ScopePrimary, "beta", true); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if got, _ := f.PrimaryBinding(ctx); got != "beta" {
		t.Fatalf("expected primary beta, got %q", got)
	}

	if err := e.SetBinding(ctx, ScopePrimary, "beta", false); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if got, _ := f.PrimaryBinding(ctx); got != "" {
		t.Fatalf("expected no primary, got %q", got)
	}
}

func TestSetBindingAuxiliary(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.charKey = "alice"
	e, _, _ := newTestEngine(t, f)

	for _, book := range []string{"alpha", "beta", "gamma"} {
		if err := e.SetBinding(ctx, ScopeAuxiliary, book, true); err != nil {
			t.Fatalf("bind %s: %v", book, err)
		}
	}
	// Re-adding an existing book is a no-op, not a duplicate.
	if err := e.SetBinding(ctx, ScopeAuxiliary, "beta", true); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	got, _ := f.AuxiliaryBindings(ctx, "alice")
	want := []string{"alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v (order must be preserved)", want, got)
		}
	}

	if err := e.SetBinding(ctx, ScopeAuxiliary, "beta", false); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	got, _ = f.AuxiliaryBindings(ctx, "alice")
	if len(got) != 2 || got[0] != "alpha" || got[1] != "gamma" {
		t.Fatalf("expected [alpha gamma], got %v", got)
	}
}

func TestSetBindingAuxiliaryNoCharacter(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	e, _, _ := newTestEngine(t, f)

	// No active character: the bind is skipped, not an error.
	if err := e.SetBinding(ctx, ScopeAuxiliary, "alpha", true); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if got, _ := f.AuxiliaryBindings(ctx, ""); len(got) != 0 {
		t.Errorf("nothing should have been bound, got %v", got)
	}
}

func TestSetBindingChat(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.chatID = "chat-1"
	e, _, _ := newTestEngine(t, f)

	if err := e.SetBinding(ctx, ScopeChat, "alpha", true); err != nil {
		t.Fatalf("bind: %v", err)
	}

	// Unbinding a different book leaves the slot alone.
	if err := e.SetBinding(ctx, ScopeChat, "beta", false); err != nil {
		t.Fatalf("unbind other: %v", err)
	}
	if got, _ := f.ChatBinding(ctx); got != "alpha" {
		t.Fatalf("slot should still hold alpha, got %q", got)
	}

	if err := e.SetBinding(ctx, ScopeChat, "alpha", false); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if got, _ := f.ChatBinding(ctx); got != "" {
		t.Fatalf("expected empty slot, got %q", got)
	}
}

func TestSetBindingGlobal(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	e, _, _ := newTestEngine(t, f)

	e.SetBinding(ctx, ScopeGlobal, "alpha", true)
	e.SetBinding(ctx, ScopeGlobal, "beta", true)
	e.SetBinding(ctx, ScopeGlobal, "alpha", true) // idempotent

	got, _ := f.GlobalBindings(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 global bindings, got %v", got)
	}

	e.SetBinding(ctx, ScopeGlobal, "alpha", false)
	got, _ = f.GlobalBindings(ctx)
	if len(got) != 1 || got[0] != "beta" {
		t.Fatalf("expected [beta], got %v", got)
	}
}

func TestBindingsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.charKey = "alice"
	f.chatID = "chat-1"
	e, _, _ := newTestEngine(t, f)

	e.SetBinding(ctx, ScopePrimary, "alpha", true)
	e.SetBinding(ctx, ScopeAuxiliary, "beta", true)
	e.SetBinding(ctx, ScopeChat, "gamma", true)
	e.SetBinding(ctx, ScopeGlobal, "delta", true)

	state, err := e.Bindings(ctx)
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	if state.Character.Primary != "alpha" {
		t.Errorf("primary: %q", state.Character.Primary)
	}
	if len(state.Character.Additional) != 1 || state.Character.Additional[0] != "beta" {
		t.Errorf("additional: %v", state.Character.Additional)
	}
	if state.Chat != "gamma" {
		t.Errorf("chat: %q", state.Chat)
	}
	if len(state.Global) != 1 || state.Global[0] != "delta" {
		t.Errorf("global: %v", state.Global)
	}
}

func TestRenameBookMigratesAllScopes(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.charKey = "alice"
	f.chatID = "chat-1"
	f.setBook("old", model.NewEntry(0))

	e, _, _ := newTestEngine(t, f)
	e.SetBinding(ctx, ScopePrimary, "old", true)
	e.SetBinding(ctx, ScopeAuxiliary, "old", true)
	e.SetBinding(ctx, ScopeChat, "old", true)
	e.SetBinding(ctx, ScopeGlobal, "old", true)

	warnings, err := e.RenameBook(ctx, "old", "new")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if _, err := f.LoadBook(ctx, "old"); !errors.Is(err, repo.ErrNotFound) {
		t.Error("old book should be deleted")
	}
	if book, err := f.LoadBook(ctx, "new"); err != nil || len(book) != 1 {
		t.Errorf("new book missing content: %v %v", book, err)
	}

	if got, _ := f.PrimaryBinding(ctx); got != "new" {
		t.Errorf("primary not migrated: %q", got)
	}
	if got, _ := f.AuxiliaryBindings(ctx, "alice"); len(got) != 1 || got[0] != "new" {
		t.Errorf("auxiliary not migrated: %v", got)
	}
	if got, _ := f.ChatBinding(ctx); got != "new" {
		t.Errorf("chat not migrated: %q", got)
	}
	if got, _ := f.GlobalBindings(ctx); len(got) != 1 || got[0] != "new" {
		t.Errorf("global not migrated: %v", got)
	}
}

// A scope that fails to migrate is reported as a warning; the rename still
// completes and the old book is still deleted.
func TestRenameBookProceedsPastScopeFailure(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.charKey = "alice"
	f.chatID = "chat-1"
	f.setBook("old", model.NewEntry(0))

	e, _, _ := newTestEngine(t, f)
	e.SetBinding(ctx, ScopePrimary, "old", true)
	e.SetBinding(ctx, ScopeChat, "old", true)

	f.failSetChat = errors.New("chat store unavailable")

	warnings, err := e.RenameBook(ctx, "old", "new")
	if err != nil {
		t.Fatalf("rename must complete despite a scope failure, got %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}

	if got, _ := f.PrimaryBinding(ctx); got != "new" {
		t.Errorf("healthy scope should still migrate: %q", got)
	}
	if _, err := f.LoadBook(ctx, "old"); !errors.Is(err, repo.ErrNotFound) {
		t.Error("old book should be deleted even after a scope failure")
	}
	// The failed scope is left pointing at the deleted name.
	if got, _ := f.ChatBinding(ctx); got != "old" {
		t.Errorf("expected chat slot untouched by the failed write, got %q", got)
	}
}

func TestRenameBookClearsActiveCache(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.setBook("old", model.NewEntry(0))

	e, _, _ := newTestEngine(t, f)
	if err := e.LoadBook(ctx, "old"); err != nil {
		t.Fatalf("load: %v", err)
	}
	e.UpdateEntry(0, func(en *model.Entry) { en.Comment = "edited" })

	if _, err := e.RenameBook(ctx, "old", "new"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if e.ActiveBook() != "" {
		t.Errorf("cache should be cleared, active is %q", e.ActiveBook())
	}
	// The pending edit was flushed into the old book before the copy.
	book, err := f.LoadBook(ctx, "new")
	if err != nil {
		t.Fatalf("load new: %v", err)
	}
	if book[0].Comment != "edited" {
		t.Errorf("pending edit lost across rename: %+v", book[0])
	}
}

func TestRenameBookRejectsBadTarget(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepo()
	f.setBook("old", model.NewEntry(0))
	e, _, _ := newTestEngine(t, f)

	if _, err := e.RenameBook(ctx, "old", ""); err == nil {
		t.Error("expected error for empty target")
	}
	if _, err := e.RenameBook(ctx, "old", "old"); err == nil {
		t.Error("expected error for same-name rename")
	}
	if _, err := e.RenameBook(ctx, "missing", "new"); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing source, got %v", err)
	}
}
