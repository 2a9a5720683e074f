package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileValueStore keeps one file per key. Useful for development and tests;
// production deployments use the Mongo store.
type FileValueStore struct{ dir string }

func NewFileValueStore(dir string) *FileValueStore {
	_ = os.MkdirAll(dir, 0700)
	return &FileValueStore{dir: dir}
}

func (f *FileValueStore) path(key string) string {
	return filepath.Join(f.dir, key+".val")
}

func (f *FileValueStore) Put(_ context.Context, key, value string) error {
	return os.WriteFile(f.path(key), []byte(value), 0600)
}

func (f *FileValueStore) Get(_ context.Context, key string) (string, error) {
	b, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	return string(b), err
}

func (f *FileValueStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileValueStore) List(_ context.Context) ([]StoredValue, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []StoredValue
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".val") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".val")
		b, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, StoredValue{Key: key, Value: string(b)})
	}
	return out, nil
}
