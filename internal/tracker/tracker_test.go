package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("failed to append %s: %v", path, err)
	}
}

// commitAll marks the whole current content of path as consumed.
func commitAll(t *testing.T, tr *Tracker, path string) CheckResult {
	t.Helper()
	res, err := tr.Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := tr.Commit(path, res.Size, res.Size, res.ModTime, res.Identity); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return res
}

func TestCheck_New(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jsonl")
	writeFile(t, path, "line\n")

	res, err := New("").Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusNew {
		t.Errorf("Check().Status = %v, want %v", res.Status, StatusNew)
	}
	if res.FromOffset != 0 {
		t.Errorf("Check().FromOffset = %d, want 0", res.FromOffset)
	}
	if res.Size != 5 {
		t.Errorf("Check().Size = %d, want 5", res.Size)
	}
}

func TestCheck_UnchangedAndModified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jsonl")
	writeFile(t, path, "first\n")

	tr := New("")
	commitAll(t, tr, path)

	res, err := tr.Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusUnchanged {
		t.Fatalf("Check().Status = %v, want %v", res.Status, StatusUnchanged)
	}
	if res.NeedsRead() {
		t.Error("NeedsRead() = true for unchanged file")
	}

	appendFile(t, path, "second\n")
	res, err = tr.Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusModified {
		t.Fatalf("Check().Status = %v, want %v", res.Status, StatusModified)
	}
	if res.FromOffset != 6 {
		t.Errorf("Check().FromOffset = %d, want 6", res.FromOffset)
	}
}

func TestCheck_RotatedBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jsonl")
	writeFile(t, path, "a long first line\n")

	tr := New("")
	commitAll(t, tr, path)

	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	appendFile(t, path, "short\n")

	res, err := tr.Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusRotated {
		t.Errorf("Check().Status = %v, want %v", res.Status, StatusRotated)
	}
	if res.FromOffset != 0 {
		t.Errorf("Check().FromOffset = %d, want 0", res.FromOffset)
	}
}

func TestCheck_RotatedByIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	writeFile(t, path, "first\n")

	tr := New("")
	first := commitAll(t, tr, path)
	if first.Identity == "" {
		t.Skip("file identity not available on this platform")
	}

	replacement := filepath.Join(dir, "b.jsonl")
	writeFile(t, replacement, "first\nplus more bytes\n")
	if err := os.Rename(replacement, path); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	res, err := tr.Check(path)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Status != StatusRotated {
		t.Errorf("Check().Status = %v, want %v", res.Status, StatusRotated)
	}
}

func TestCheck_Missing(t *testing.T) {
	_, err := New("").Check(filepath.Join(t.TempDir(), "missing.jsonl"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Check() error = %v, want os.ErrNotExist", err)
	}
}

func TestCommit_RejectsOffsetBeyondSize(t *testing.T) {
	tr := New("")
	err := tr.Commit("/x.jsonl", 10, 5, time.Now(), "")
	if !errors.Is(err, ErrOffsetBeyondSize) {
		t.Errorf("Commit() error = %v, want ErrOffsetBeyondSize", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
}

func TestRemoveResetPaths(t *testing.T) {
	tr := New("")
	now := time.Now()
	for _, p := range []string{"/c", "/a", "/b"} {
		if err := tr.Commit(p, 1, 2, now, ""); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	got := tr.Paths()
	want := []string{"/a", "/b", "/c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Paths() = %v, want %v", got, want)
		}
	}
	if tr.TotalOffset() != 3 {
		t.Errorf("TotalOffset() = %d, want 3", tr.TotalOffset())
	}

	tr.Remove("/b")
	if _, ok := tr.Get("/b"); ok {
		t.Error("Get() found removed path")
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", tr.Len())
	}
}

func TestPersistRestore(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state", "tracker.yaml")
	mod := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tr := New(statePath)
	if err := tr.Commit("/logs/a.jsonl", 100, 120, mod, "1:2"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := tr.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := os.Stat(statePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp state file left behind")
	}

	restored := New(statePath)
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	st, ok := restored.Get("/logs/a.jsonl")
	if !ok {
		t.Fatal("Restore() lost tracked file")
	}
	if st.LastReadOffset != 100 || st.LastSize != 120 || st.Identity != "1:2" {
		t.Errorf("Restore() state = %+v", st)
	}
	if !st.LastModified.Equal(mod) {
		t.Errorf("LastModified = %v, want %v", st.LastModified, mod)
	}
}

func TestRestore_MissingFile(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "none.yaml"))
	if err := tr.Restore(); err != nil {
		t.Errorf("Restore() error = %v, want nil", err)
	}
}

func TestRestore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Garbage", "{{{ not yaml"},
		{"WrongVersion", "version: 99\nfiles: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.yaml")
			writeFile(t, path, tt.content)

			tr := New(path)
			_ = tr.Commit("/stale", 0, 0, time.Now(), "")
			err := tr.Restore()
			if !errors.Is(err, ErrCorruptState) {
				t.Errorf("Restore() error = %v, want ErrCorruptState", err)
			}
			if tr.Len() != 0 {
				t.Errorf("Len() = %d, want 0 after corrupt restore", tr.Len())
			}
		})
	}
}

func TestRestore_DropsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	writeFile(t, path, `version: 1
files:
  /good.jsonl:
    last_modified: 2025-06-01T12:00:00Z
    last_size: 10
    last_read_offset: 10
  /bad.jsonl:
    last_modified: 2025-06-01T12:00:00Z
    last_size: 5
    last_read_offset: 50
`)

	tr := New(path)
	if err := tr.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, ok := tr.Get("/good.jsonl"); !ok {
		t.Error("valid entry dropped")
	}
	if _, ok := tr.Get("/bad.jsonl"); ok {
		t.Error("entry with offset beyond size kept")
	}
}
