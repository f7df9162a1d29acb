// ABOUTME: File-backed Store adapter with one record file per key
// ABOUTME: Writes via temp file + fsync + rename with a directory fsync after each change

package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore persists each key as its own file under a root directory.
// Keys are path-escaped into file names. A Set is durable when it returns:
// the record is written to a temp file, fsynced, renamed over the final
// name, and the directory is fsynced so the rename survives a crash.
type FileStore struct {
	dir string
}

// NewFileStore opens a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// Get retrieves a value by key.
func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(fs.recordPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read record: %w", err)
	}
	return data, true, nil
}

// Set writes a value durably.
func (fs *FileStore) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(fs.dir, ".write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write record: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("fsync record: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), fs.recordPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename record: %w", err)
	}

	return fs.syncDir()
}

// Delete removes a key. Deleting a missing key is not an error.
func (fs *FileStore) Delete(key string) error {
	err := os.Remove(fs.recordPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return fs.syncDir()
}

func (fs *FileStore) recordPath(key string) string {
	return filepath.Join(fs.dir, url.PathEscape(key)+".rec")
}

// syncDir fsyncs the store directory so renames and removals are durable.
func (fs *FileStore) syncDir() error {
	d, err := os.Open(fs.dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("fsync directory: %w", err)
	}
	return nil
}
