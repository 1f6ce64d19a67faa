package schemacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// FileStore keeps one JSON document per dataset in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var fileNameReplacer = strings.NewReplacer(":", ".", "/", "_", `\`, "_")

// Path returns the cache file of a dataset: "<target>.<dataset>_schema.json".
func (s *FileStore) Path(id core.DatasetID) string {
	return filepath.Join(s.dir, fileNameReplacer.Replace(id.String())+"_schema.json")
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, id core.DatasetID) (core.SchemaSet, error) {
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return core.SchemaSet{}, ErrNotFound
	}
	if err != nil {
		return core.SchemaSet{}, fmt.Errorf("read schema cache: %w", err)
	}
	var set core.SchemaSet
	if err := json.Unmarshal(data, &set); err != nil {
		return core.SchemaSet{}, fmt.Errorf("decode schema cache %s: %w", s.Path(id), err)
	}
	return set, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(_ context.Context, id core.DatasetID, set core.SchemaSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema cache: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create schema cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".schema-*.json")
	if err != nil {
		return fmt.Errorf("create temp schema file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write schema cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write schema cache: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace schema cache: %w", err)
	}
	return nil
}
