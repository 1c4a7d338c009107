package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Disk stores one JSON file per hashed key under a cache directory. Entries
// survive restarts. Writes go to a temp file and are renamed into place so
// concurrent readers (or a second process sharing the directory) never see a
// partial entry; the last writer wins.
type Disk struct {
	dir string
}

// NewDisk creates the cache directory if needed and returns a disk backend.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *Disk) Get(key string) (Entry, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, &StorageError{Op: "read", Key: key, Err: err}
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return e, true, nil
}

func (d *Disk) Set(key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (d *Disk) Delete(key string) error {
	err := os.Remove(d.path(key))
	if err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (d *Disk) Clear() error {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return &StorageError{Op: "clear", Key: filepath.Base(path), Err: err}
		}
	}
	return nil
}
