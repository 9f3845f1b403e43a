package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists export files. Paths are forward-slash separated and
// relative to the store root. Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. A missing file yields an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write truncates or creates the named file. Data is committed when the
	// returned writer is closed; use Abort to discard it instead.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file; deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)

	// Location describes where path is stored, for logs and records.
	Location(path string) string
}

// Aborter is implemented by FileStore writers that can discard a partial
// write. CloseWithError leaves any previously committed file untouched.
type Aborter interface {
	CloseWithError(err error) error
}

// Abort discards the data written to w, falling back to Close for writers
// that cannot abort.
func Abort(w io.WriteCloser, cause error) error {
	if a, ok := w.(Aborter); ok {
		return a.CloseWithError(cause)
	}
	return w.Close()
}

// Local implements FileStore on a directory.
type Local struct {
	root string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(l.resolve(path))
}

func (l *Local) Write(_ context.Context, path string) (io.WriteCloser, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &localWriter{File: f, path: full}, nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	err := os.Remove(l.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) Location(path string) string {
	return l.resolve(path)
}

// localWriter writes to a temp file next to path and renames it into place
// on Close.
type localWriter struct {
	*os.File
	path string
}

func (w *localWriter) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.Name())
		return err
	}
	if err := os.Rename(w.Name(), w.path); err != nil {
		os.Remove(w.Name())
		return err
	}
	return nil
}

func (w *localWriter) CloseWithError(error) error {
	w.File.Close()
	return os.Remove(w.Name())
}

var (
	_ FileStore = (*Local)(nil)
	_ Aborter   = (*localWriter)(nil)
)
