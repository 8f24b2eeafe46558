package attachments

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"khata/internal/core"
)

func TestSaveAndRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Save(strings.NewReader("voice"), "note.M4A")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(path) != ".m4a" {
		t.Errorf("extension not normalized: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "voice" {
		t.Fatalf("read back %q, %v", data, err)
	}

	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still present")
	}
	if err := s.Remove(path); err != nil {
		t.Fatalf("removing a missing file: %v", err)
	}
}

func TestSaveRejects(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		file string
	}{
		{"unsupported extension", []byte("x"), "run.sh"},
		{"no extension", []byte("x"), "voice"},
		{"too large", bytes.Repeat([]byte{1}, MaxSizeBytes+1), "big.wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(bytes.NewReader(tt.data), tt.file)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	left, _ := os.ReadDir(dir)
	if len(left) != 0 {
		t.Fatalf("rejected uploads left %d files", len(left))
	}
}

func TestRemoveOutsideDirectory(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(t.TempDir(), "other.m4a")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err = s.Remove(outside)
	var side *core.SideArtifactError
	if !errors.As(err, &side) {
		t.Fatalf("err = %v, want SideArtifactError", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatal("file outside the store was removed")
	}
}
