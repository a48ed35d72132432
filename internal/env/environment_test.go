package env

import (
	"path/filepath"
	"testing"
)

func TestDataDir(t *testing.T) {
	t.Setenv(EnvVarDataDir, "")
	t.Setenv("XDG_DATA_HOME", "/xdg")
	if got, want := DataDir(), filepath.Join("/xdg", "fixnested"); got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}

	t.Setenv(EnvVarDataDir, "/override")
	if got := DataDir(); got != "/override" {
		t.Errorf("DataDir() = %q, want /override", got)
	}
	if got, want := LocksDir(), filepath.Join("/override", "locks"); got != want {
		t.Errorf("LocksDir() = %q, want %q", got, want)
	}
}

func TestJournalPath(t *testing.T) {
	t.Setenv(EnvVarDataDir, "/data")
	t.Setenv(EnvVarJournalPath, "")
	if got, want := JournalPath(), filepath.Join("/data", "journal.boltdb"); got != want {
		t.Errorf("JournalPath() = %q, want %q", got, want)
	}
	t.Setenv(EnvVarJournalPath, "/elsewhere.db")
	if got := JournalPath(); got != "/elsewhere.db" {
		t.Errorf("JournalPath() = %q, want /elsewhere.db", got)
	}
}
