// Package store provides the SQLite catalog of shaders and their sources.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a shader id does not exist.
var ErrNotFound = errors.New("not found")

// TypeGLSL tags every shader handled by this pipeline.
const TypeGLSL = "GLSL"

// Shader is one row of the Shader table.
type Shader struct {
	ID          int64
	ShadertoyID string // empty for user imports
	Name        string
	Description string
	Author      string
	Type        string
	ReadOnly    bool
	Favorite    bool
	LastUpdate  time.Time
}

// Entry is a shader together with its image pass source, inserted as a pair.
type Entry struct {
	Shader     Shader
	SourceCode string
}

// Store is a SQLite-backed shader catalog.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// NewInMemory creates an in-memory store for testing.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS Shader (
		Id INTEGER PRIMARY KEY AUTOINCREMENT,
		ShadertoyID TEXT UNIQUE,
		Name TEXT NOT NULL,
		Description TEXT NOT NULL DEFAULT '',
		Author TEXT NOT NULL DEFAULT '',
		Type TEXT NOT NULL,
		ReadOnly INTEGER NOT NULL DEFAULT 0,
		Favorite INTEGER NOT NULL DEFAULT 0,
		LastUpdate TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ImageSource (
		Id INTEGER PRIMARY KEY AUTOINCREMENT,
		Shader INTEGER NOT NULL,
		SourceCode TEXT NOT NULL,
		FOREIGN KEY (Shader) REFERENCES Shader(Id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_image_source_shader ON ImageSource(Shader);
	`
	_, err := s.db.Exec(schema)
	return err
}

// KnownRemoteIDs returns every ShadertoyID present in the store.
func (s *Store) KnownRemoteIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ShadertoyID FROM Shader WHERE ShadertoyID IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query remote ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan remote id: %w", err)
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// InsertEntries inserts every shader row and then every source row in a
// single transaction. Either all entries are stored or none are.
func (s *Store) InsertEntries(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(entries))
	for i, e := range entries {
		id, err := insertShader(ctx, tx, e.Shader)
		if err != nil {
			return 0, fmt.Errorf("failed to insert shader %q: %w", e.Shader.Name, err)
		}
		ids[i] = id
	}

	for i, e := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ImageSource (Shader, SourceCode) VALUES (?, ?)",
			ids[i], e.SourceCode); err != nil {
			return 0, fmt.Errorf("failed to insert source for %q: %w", e.Shader.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(entries), nil
}

func insertShader(ctx context.Context, tx *sql.Tx, sh Shader) (int64, error) {
	var remote sql.NullString
	if sh.ShadertoyID != "" {
		remote = sql.NullString{String: sh.ShadertoyID, Valid: true}
	}
	if sh.Type == "" {
		sh.Type = TypeGLSL
	}
	if sh.LastUpdate.IsZero() {
		sh.LastUpdate = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO Shader (ShadertoyID, Name, Description, Author, Type, ReadOnly, Favorite, LastUpdate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		remote, sh.Name, sh.Description, sh.Author, sh.Type, sh.ReadOnly, sh.Favorite,
		sh.LastUpdate.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Import stores a user-supplied shader. Imported shaders are editable and
// have no remote id.
func (s *Store) Import(ctx context.Context, name, author, code string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertShader(ctx, tx, Shader{
		Name:       name,
		Author:     author,
		Type:       TypeGLSL,
		LastUpdate: time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert shader %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO ImageSource (Shader, SourceCode) VALUES (?, ?)", id, code); err != nil {
		return 0, fmt.Errorf("failed to insert source for %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

const shaderColumns = "Id, ShadertoyID, Name, Description, Author, Type, ReadOnly, Favorite, LastUpdate"

type scanner interface {
	Scan(dest ...any) error
}

func scanShader(row scanner) (Shader, error) {
	var (
		sh         Shader
		remote     sql.NullString
		lastUpdate string
	)
	if err := row.Scan(&sh.ID, &remote, &sh.Name, &sh.Description, &sh.Author, &sh.Type,
		&sh.ReadOnly, &sh.Favorite, &lastUpdate); err != nil {
		return Shader{}, err
	}
	sh.ShadertoyID = remote.String
	t, err := time.Parse(time.RFC3339Nano, lastUpdate)
	if err != nil {
		return Shader{}, fmt.Errorf("failed to parse LastUpdate %q: %w", lastUpdate, err)
	}
	sh.LastUpdate = t
	return sh, nil
}

// List returns every shader ordered by name, favorites first when
// favoritesFirst is set.
func (s *Store) List(ctx context.Context, favoritesFirst bool) ([]Shader, error) {
	order := "Name COLLATE NOCASE, Id"
	if favoritesFirst {
		order = "Favorite DESC, " + order
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+shaderColumns+" FROM Shader ORDER BY "+order)
	if err != nil {
		return nil, fmt.Errorf("failed to list shaders: %w", err)
	}
	defer rows.Close()

	var result []Shader
	for rows.Next() {
		sh, err := scanShader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shader: %w", err)
		}
		result = append(result, sh)
	}
	return result, rows.Err()
}

// Get returns the shader with the given local id.
// Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (Shader, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+shaderColumns+" FROM Shader WHERE Id = ?", id)
	sh, err := scanShader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Shader{}, fmt.Errorf("shader %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Shader{}, err
	}
	return sh, nil
}

// GetByRemoteID returns the shader with the given ShadertoyID.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID string) (Shader, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+shaderColumns+" FROM Shader WHERE ShadertoyID = ?", remoteID)
	sh, err := scanShader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Shader{}, fmt.Errorf("shader %s: %w", remoteID, ErrNotFound)
	}
	if err != nil {
		return Shader{}, err
	}
	return sh, nil
}

// Source returns the fragment body stored for a shader.
// Returns ErrNotFound if the shader has no source.
func (s *Store) Source(ctx context.Context, shaderID int64) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		"SELECT SourceCode FROM ImageSource WHERE Shader = ? ORDER BY Id LIMIT 1",
		shaderID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("source for shader %d: %w", shaderID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// SetFavorite marks or unmarks a shader as favorite.
// Returns ErrNotFound if the shader does not exist.
func (s *Store) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE Shader SET Favorite = ? WHERE Id = ?", favorite, id)
	if err != nil {
		return fmt.Errorf("failed to update shader %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("shader %d: %w", id, ErrNotFound)
	}
	return nil
}

// Count returns the number of shaders in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Shader").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count shaders: %w", err)
	}
	return n, nil
}
