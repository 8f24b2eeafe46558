// Package attachments stores files attached to ledger entries, like voice
// notes, on the local disk.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"khata/internal/core"
)

// MaxSizeBytes bounds a single attachment.
const MaxSizeBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".m4a":  true,
	".mp3":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Store keeps attachments under one directory with random names.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("attachments directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create attachments directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save copies r into a new file named after fileName's extension and
// returns its path.
func (s *Store) Save(r io.Reader, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return "", core.NewValidationError("attachment", fmt.Sprintf("unsupported file type %q", ext))
	}

	path := filepath.Join(s.dir, uuid.New().String()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", &core.SideArtifactError{Path: path, Err: err}
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxSizeBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxSizeBytes {
		err = core.NewValidationError("attachment", "file exceeds 10MB limit")
	}
	if err != nil {
		os.Remove(path)
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return "", verr
		}
		return "", &core.SideArtifactError{Path: path, Err: err}
	}
	return path, nil
}

// Remove deletes an attachment. A file that is already gone is not an
// error. Paths outside the store are refused.
func (s *Store) Remove(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return &core.SideArtifactError{Path: path, Err: errors.New("path outside attachments directory")}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &core.SideArtifactError{Path: path, Err: err}
	}
	return nil
}
