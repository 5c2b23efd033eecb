package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spotik/spotik/internal/models"
)

// Store persists the credential snapshot: the full record set is written
// as one document on every mutation and read back once at startup.
type Store interface {
	// Load reads the snapshot. A missing snapshot is not an error and
	// yields an empty map.
	Load() (map[string]models.Credential, error)

	// Save atomically replaces the snapshot with the given record set.
	Save(records map[string]models.Credential) error
}

// FileStore persists the snapshot as a single JSON document.
//
// Writes go to a temporary file in the same directory followed by a
// rename, so a crash mid-write never leaves a truncated snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load() (map[string]models.Credential, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]models.Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	records := map[string]models.Credential{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	return records, nil
}

func (f *FileStore) Save(records map[string]models.Credential) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// SQLiteStore persists the snapshot in a credentials table.
//
// Save rewrites the whole table inside one transaction, mirroring the
// document-overwrite semantics of [FileStore].
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the credentials table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	query := `
		CREATE TABLE IF NOT EXISTS credentials (
			user_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (map[string]models.Credential, error) {
	rows, err := s.db.Query(`SELECT user_id, access_token, refresh_token, expires_at FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	records := map[string]models.Credential{}
	for rows.Next() {
		var rec models.Credential
		var expiresAt string

		if err := rows.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}

		rec.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expiry for %s: %w", rec.UserID, err)
		}

		records[rec.UserID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credential rows: %w", err)
	}

	return records, nil
}

func (s *SQLiteStore) Save(records map[string]models.Credential) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	for _, rec := range records {
		_, err := tx.Exec(
			`INSERT INTO credentials (user_id, access_token, refresh_token, expires_at) VALUES (?, ?, ?, ?)`,
			rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert credential for %s: %w", rec.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}
