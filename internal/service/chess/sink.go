package chess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPersistenceFailure = errors.New("persist rendered image")

const imageExt = ".png"

// Sink persists one encoded image under a base name and returns where it went.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Save writes <Dir>/<name>.png through a temp file so readers never see a
// partial image.
func (s *FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty output name", ErrPersistenceFailure)
	}

	path := filepath.Join(s.Dir, name+imageExt)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, path, err)
	}
	tmpName := tmp.Name()
	_ = tmp.Chmod(0o644)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, path, err)
	}
	return path, nil
}
