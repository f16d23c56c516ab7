package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/debemdeboas/war-room/internal/util/compression"
)

type SnapshotStore interface {
	// Load returns nil and no error when nothing has been saved yet.
	Load() (*PersistedSnapshot, error)
	Save(snap *PersistedSnapshot) error
}

// FileSnapshotStore keeps the snapshot as compressed JSON in a single file.
type FileSnapshotStore struct {
	path       string
	compressor compression.Compressor
	mu         sync.Mutex
}

func NewFileSnapshotStore(path string, compressor compression.Compressor) *FileSnapshotStore {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &FileSnapshotStore{path: path, compressor: compressor}
}

func (f *FileSnapshotStore) Path() string {
	return f.path
}

func (f *FileSnapshotStore) Load() (*PersistedSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	raw, err := f.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("error decompressing snapshot: %w", err)
	}

	var snap PersistedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("error decoding snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the file atomically so a crash never leaves a torn snapshot.
func (f *FileSnapshotStore) Save(snap *PersistedSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}
	data, err := f.compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("error compressing snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("error creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("error creating snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// Clear removes the snapshot file, e.g. on sign-out.
func (f *FileSnapshotStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
