package recorder

import (
	"path/filepath"
	"testing"

	"github.com/yoockh/scribe/internal/models"
)

func TestSQLiteStatusStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.sqlite")

	s, err := OpenStatusStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok, err := s.Load("s1"); err != nil || ok {
		t.Fatalf("empty load = %v, %v", ok, err)
	}
	if err := s.Save("s1", models.StatusRecording); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("s1", models.StatusPaused); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	s.Close()

	s, err = OpenStatusStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, ok, err := s.Load("s1")
	if err != nil || !ok || got != models.StatusPaused {
		t.Fatalf("load = %s %v %v", got, ok, err)
	}
}

func TestSQLiteStatusStore_UnknownValueLoadsAsIdle(t *testing.T) {
	s, err := OpenStatusStore(filepath.Join(t.TempDir(), "status.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.db.Exec(`INSERT INTO recorder_status (key, status, updatedAt) VALUES (?, ?, 0)`, statusKey("s1"), "ARCHIVED"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, ok, err := s.Load("s1")
	if err != nil || ok || got != models.StatusIdle {
		t.Fatalf("load = %s %v %v", got, ok, err)
	}
}
