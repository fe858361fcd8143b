package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

var _ Store = (*File)(nil)

// File persists blobs as one JSON file per key inside a directory.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile creates the directory if needed and returns a file-backed store.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "[NewFile] creating %s", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	// Keys are fixed identifiers like "local_user"; the replacement only
	// guards against accidental separators.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(f.dir, safe+".json")
}

func (f *File) Get(key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "[Get] reading blob %q", key)
	}
	if err := sonic.Unmarshal(blob, out); err != nil {
		return false, errors.Wrapf(err, "[Get] decoding blob %q", key)
	}
	return true, nil
}

func (f *File) Set(key string, value any) error {
	blob, err := sonic.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[Set] encoding blob %q", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(f.path(key), blob, 0o600); err != nil {
		return errors.Wrapf(err, "[Set] writing blob %q", key)
	}
	return nil
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "[Delete] removing blob %q", key)
	}
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return errors.Wrapf(err, "[Clear] listing %s", f.dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil {
			return errors.Wrapf(err, "[Clear] removing %s", entry.Name())
		}
	}
	return nil
}
