package disk

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meigma/memo/store"
)

func TestStageCommitLookup(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stg, err := s.Stage("train", "abc123")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	outDir, err := stg.MakeOutputDir("model")
	if err != nil {
		t.Fatalf("MakeOutputDir() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "weights"), []byte("w"), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := stg.WriteResult([]byte("result")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}

	// Not visible before commit.
	if _, status, err := s.Lookup("train", "abc123"); err != nil || status != store.StatusAbsent {
		t.Fatalf("Lookup() before commit = %v, %v; want StatusAbsent", status, err)
	}

	ent, err := stg.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, status, err := s.Lookup("train", "abc123")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if status != store.StatusValid {
		t.Fatalf("Lookup() status = %v, want StatusValid", status)
	}
	data, ok, err := got.Result()
	if err != nil || !ok {
		t.Fatalf("Result() = %v, %v, %v; want data, true, nil", data, ok, err)
	}
	if !bytes.Equal(data, []byte("result")) {
		t.Fatalf("Result() data = %q, want %q", data, "result")
	}
	artifact, err := os.ReadFile(filepath.Join(got.OutputDir("model"), "weights"))
	if err != nil {
		t.Fatalf("read published artifact: %v", err)
	}
	if !bytes.Equal(artifact, []byte("w")) {
		t.Fatalf("artifact = %q, want %q", artifact, "w")
	}
	if ent.Path() != got.Path() {
		t.Fatalf("Path() mismatch: %q vs %q", ent.Path(), got.Path())
	}
}

func TestLookupAbsent(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ent, status, err := s.Lookup("fn", "nope")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if status != store.StatusAbsent || ent != nil {
		t.Fatalf("Lookup() = %v, %v; want nil, StatusAbsent", ent, status)
	}
}

func TestLookupMissingTokenIsInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// An entry directory without the token, as left by a crashed writer.
	if err := os.MkdirAll(filepath.Join(dir, "fn", "key1"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fn", "key1", resultName), []byte("partial"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, status, err := s.Lookup("fn", "key1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if status != store.StatusInvalid {
		t.Fatalf("Lookup() status = %v, want StatusInvalid", status)
	}

	if err := s.Remove("fn", "key1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, status, _ := s.Lookup("fn", "key1"); status != store.StatusAbsent {
		t.Fatalf("Lookup() after Remove = %v, want StatusAbsent", status)
	}
}

func TestCommitConflict(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Two writers race on the same key.
	first, err := s.Stage("fn", "key")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	second, err := s.Stage("fn", "key")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	if err := first.WriteResult([]byte("winner")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if _, err := first.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if err := second.WriteResult([]byte("loser")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if _, err := second.Commit(); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Commit() error = %v, want ErrConflict", err)
	}

	// The winner's entry is untouched.
	ent, status, err := s.Lookup("fn", "key")
	if err != nil || status != store.StatusValid {
		t.Fatalf("Lookup() = %v, %v; want StatusValid", status, err)
	}
	data, _, err := ent.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if !bytes.Equal(data, []byte("winner")) {
		t.Fatalf("Result() = %q, want %q", data, "winner")
	}
}

func TestStagingDiscard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stg, err := s.Stage("fn", "key")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := stg.WriteResult([]byte("abandoned")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if err := stg.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "fn"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("fn dir has %d entries after Discard, want 0", len(entries))
	}
}

func TestResultAbsent(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stg, err := s.Stage("fn", "key")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	ent, err := stg.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	data, ok, err := ent.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if ok || data != nil {
		t.Fatalf("Result() = %q, %v; want nil, false", data, ok)
	}
}

func TestBadPathElements(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, tc := range []struct{ fn, key string }{
		{"", "key"},
		{"fn", ""},
		{"../fn", "key"},
		{"fn", ".."},
		{"a/b", "key"},
		{"fn", `k\ey`},
	} {
		if _, _, err := s.Lookup(tc.fn, tc.key); err == nil {
			t.Fatalf("Lookup(%q, %q) error = nil, want error", tc.fn, tc.key)
		}
		if _, err := s.Stage(tc.fn, tc.key); err == nil {
			t.Fatalf("Stage(%q, %q) error = nil, want error", tc.fn, tc.key)
		}
	}
}

func TestNewEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}
