package docrag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StageDocument copies an upload into dir under a random name that keeps the
// original extension. The returned cleanup removes the staged file.
func StageDocument(dir string, filename string, r io.Reader) (string, func(), error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", nil, ErrInvalidFilename
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}

	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", nil, err
	}

	cleanup := func() {
		os.Remove(path)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage %s: %w", filename, err)
	}

	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}

	return path, cleanup, nil
}
