package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/jtarleton/lorebook/internal/model"
)

// SQLiteRepository implements Repository using SQLite. Entries are stored as
// one JSON document per row so fields outside the editor's shape survive
// round-trips.
type SQLiteRepository struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteRepository opens or creates a SQLite database at the given path.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &SQLiteRepository{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		name       TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		book TEXT NOT NULL REFERENCES books(name) ON DELETE CASCADE,
		uid  INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (book, uid)
	);

	CREATE TABLE IF NOT EXISTS character_bindings (
		char_key TEXT PRIMARY KEY,
		book     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auxiliary_bindings (
		char_key TEXT PRIMARY KEY,
		books    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_bindings (
		chat_id TEXT PRIMARY KEY,
		book    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS global_bindings (
		book TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chats (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		note_depth REAL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// --- books ---

func (r *SQLiteRepository) ListBookNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM books ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) bookExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM books WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *SQLiteRepository) LoadBook(ctx context.Context, name string) (map[int]model.Entry, error) {
	exists, err := r.bookExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("load book %q: %w", name, ErrNotFound)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT uid, data FROM entries WHERE book = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[int]model.Entry)
	for rows.Next() {
		var uid int
		var data string
		if err := rows.Scan(&uid, &data); err != nil {
			return nil, err
		}
		var e model.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode entry %d of %q: %w", uid, name, err)
		}
		entries[uid] = e
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) SaveBook(ctx context.Context, name string, entries map[int]model.Entry, createIfMissing bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if createIfMissing {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO books (name, created_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
	} else {
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE name = ?`, name).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("save book %q: %w", name, ErrNotFound)
		}
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE book = ?`, name); err != nil {
		return err
	}
	for uid, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", uid, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entries (book, uid, data) VALUES (?, ?, ?)`,
			name, uid, string(data))
		if err != nil {
			return fmt.Errorf("insert entry %d: %w", uid, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) CreateBook(ctx context.Context, name string) error {
	exists, err := r.bookExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("book %q already exists", name)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO books (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteBook(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete book %q: %w", name, ErrNotFound)
	}
	return nil
}

// --- session ---

func (r *SQLiteRepository) getState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) setState(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// CurrentCharacter returns the active character key, or "" when none is set.
func (r *SQLiteRepository) CurrentCharacter(ctx context.Context) (string, error) {
	return r.getState(ctx, "current_character")
}

// SetCurrentCharacter switches the active character context.
func (r *SQLiteRepository) SetCurrentCharacter(ctx context.Context, key string) error {
	return r.setState(ctx, "current_character", key)
}

// CurrentChat returns the active chat id, or "" when none is set.
func (r *SQLiteRepository) CurrentChat(ctx context.Context) (string, error) {
	return r.getState(ctx, "current_chat")
}

// SetCurrentChat switches the active chat context.
func (r *SQLiteRepository) SetCurrentChat(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM chats WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("chat %q does not exist", id)
	}
	if err != nil {
		return err
	}
	return r.setState(ctx, "current_chat", id)
}

// NewChat creates a chat session and makes it current. Returns its id.
func (r *SQLiteRepository) NewChat(ctx context.Context, name string) (string, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return id, r.setState(ctx, "current_chat", id)
}

// ChatNoteDepth returns the author-note depth configured for the active
// chat. ok is false when no chat is active or no depth is configured.
func (r *SQLiteRepository) ChatNoteDepth(ctx context.Context) (depth float64, ok bool, err error) {
	chatID, err := r.CurrentChat(ctx)
	if err != nil || chatID == "" {
		return 0, false, err
	}
	var d sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `SELECT note_depth FROM chats WHERE id = ?`, chatID).Scan(&d)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil || !d.Valid {
		return 0, false, err
	}
	return d.Float64, true, nil
}

// SetChatNoteDepth configures the author-note depth for the active chat.
func (r *SQLiteRepository) SetChatNoteDepth(ctx context.Context, depth float64) error {
	chatID, err := r.CurrentChat(ctx)
	if err != nil {
		return err
	}
	if chatID == "" {
		return fmt.Errorf("no active chat")
	}
	_, err = r.db.ExecContext(ctx, `UPDATE chats SET note_depth = ? WHERE id = ?`, depth, chatID)
	return err
}

// --- bindings ---

func (r *SQLiteRepository) PrimaryBinding(ctx context.Context) (string, error) {
	charKey, err := r.CurrentCharacter(ctx)
	if err != nil || charKey == "" {
		return "", err
	}
	var book string
	err = r.db.QueryRowContext(ctx,
		`SELECT book FROM character_bindings WHERE char_key = ?`, charKey).Scan(&book)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return book, err
}

func (r *SQLiteRepository) SetPrimaryBinding(ctx context.Context, name string) error {
	charKey, err := r.CurrentCharacter(ctx)
	if err != nil {
		return err
	}
	if charKey == "" {
		// No active character to bind against; nothing to do.
		return nil
	}
	if name == "" {
		_, err = r.db.ExecContext(ctx, `DELETE FROM character_bindings WHERE char_key = ?`, charKey)
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO character_bindings (char_key, book) VALUES (?, ?)
		 ON CONFLICT(char_key) DO UPDATE SET book = excluded.book`, charKey, name)
	return err
}

func (r *SQLiteRepository) AuxiliaryBindings(ctx context.Context, characterKey string) ([]string, error) {
	var booksJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT books FROM auxiliary_bindings WHERE char_key = ?`, characterKey).Scan(&booksJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var books []string
	if err := json.Unmarshal([]byte(booksJSON), &books); err != nil {
		return nil, fmt.Errorf("decode auxiliary bindings for %q: %w", characterKey, err)
	}
	return books, nil
}

func (r *SQLiteRepository) SetAuxiliaryBindings(ctx context.Context, characterKey string, books []string) error {
	if len(books) == 0 {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM auxiliary_bindings WHERE char_key = ?`, characterKey)
		return err
	}
	data, _ := json.Marshal(books)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auxiliary_bindings (char_key, books) VALUES (?, ?)
		 ON CONFLICT(char_key) DO UPDATE SET books = excluded.books`,
		characterKey, string(data))
	return err
}

func (r *SQLiteRepository) ChatBinding(ctx context.Context) (string, error) {
	chatID, err := r.CurrentChat(ctx)
	if err != nil || chatID == "" {
		return "", err
	}
	var book string
	err = r.db.QueryRowContext(ctx,
		`SELECT book FROM chat_bindings WHERE chat_id = ?`, chatID).Scan(&book)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return book, err
}

func (r *SQLiteRepository) SetChatBinding(ctx context.Context, name string) error {
	chatID, err := r.CurrentChat(ctx)
	if err != nil {
		return err
	}
	if chatID == "" {
		return nil
	}
	if name == "" {
		_, err = r.db.ExecContext(ctx, `DELETE FROM chat_bindings WHERE chat_id = ?`, chatID)
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chat_bindings (chat_id, book) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET book = excluded.book`, chatID, name)
	return err
}

func (r *SQLiteRepository) GlobalBindings(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT book FROM global_bindings ORDER BY book`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []string
	for rows.Next() {
		var book string
		if err := rows.Scan(&book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (r *SQLiteRepository) ToggleGlobalBinding(ctx context.Context, name string, enabled bool) error {
	var err error
	if enabled {
		_, err = r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO global_bindings (book) VALUES (?)`, name)
	} else {
		_, err = r.db.ExecContext(ctx, `DELETE FROM global_bindings WHERE book = ?`, name)
	}
	return err
}

func (r *SQLiteRepository) PrimaryBindingsByBook(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT book, char_key FROM character_bindings ORDER BY char_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bound := make(map[string][]string)
	for rows.Next() {
		var book, charKey string
		if err := rows.Scan(&book, &charKey); err != nil {
			return nil, err
		}
		bound[book] = append(bound[book], charKey)
	}
	return bound, rows.Err()
}

// --- metadata blob ---

func (r *SQLiteRepository) Metadata(ctx context.Context) (map[string]model.BookMeta, error) {
	blob, err := r.getState(ctx, "metadata")
	if err != nil {
		return nil, err
	}
	meta := make(map[string]model.BookMeta)
	if blob == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(blob), &meta); err != nil {
		return nil, fmt.Errorf("decode metadata blob: %w", err)
	}
	return meta, nil
}

func (r *SQLiteRepository) SaveMetadata(ctx context.Context, meta map[string]model.BookMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.setState(ctx, "metadata", string(data))
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
