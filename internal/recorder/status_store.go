package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yoockh/scribe/internal/models"
	_ "modernc.org/sqlite"
)

// StatusStore remembers the last recorder status per session across restarts.
type StatusStore interface {
	Load(sessionID string) (models.Status, bool, error)
	Save(sessionID string, status models.Status) error
	Close() error
}

// SQLiteStatusStore keeps statuses in a local SQLite file.
type SQLiteStatusStore struct {
	db *sql.DB
}

// DefaultStatusPath returns the status database under the user config dir.
func DefaultStatusPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "scribe", "recorder.sqlite")
}

func statusKey(sessionID string) string { return "scribe-" + sessionID }

func OpenStatusStore(path string) (*SQLiteStatusStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open status store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS recorder_status (
			key TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updatedAt REAL NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create status table: %w", err)
	}
	return &SQLiteStatusStore{db: db}, nil
}

func (s *SQLiteStatusStore) Close() error { return s.db.Close() }

// Load returns the remembered status. Unknown stored values map to IDLE with
// ok=false.
func (s *SQLiteStatusStore) Load(sessionID string) (models.Status, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT status FROM recorder_status WHERE key = ?`, statusKey(sessionID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusIdle, false, nil
	}
	if err != nil {
		return models.StatusIdle, false, fmt.Errorf("load status: %w", err)
	}
	st, ok := models.ParseStatus(raw)
	return st, ok, nil
}

func (s *SQLiteStatusStore) Save(sessionID string, status models.Status) error {
	now := float64(time.Now().UnixNano()) / 1e9
	_, err := s.db.Exec(`
		INSERT INTO recorder_status (key, status, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET status = excluded.status, updatedAt = excluded.updatedAt
	`, statusKey(sessionID), string(status), now)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}
