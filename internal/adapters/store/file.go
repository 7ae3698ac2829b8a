package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/greenroom/internal/domain/model"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600
)

// FileStore implements Store with one JSON document per session under a
// root directory. Saves are atomic: write to a temp file, then rename.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns the store.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("file store root must not be empty")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(id string) (string, error) {
	// Session ids become file names; anything that could escape the root
	// directory is rejected outright.
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", ErrInvalidID
	}
	return filepath.Join(s.root, id+".json"), nil
}

// Load reads and decodes the session document.
func (s *FileStore) Load(ctx context.Context, id string) (model.SessionState, error) {
	path, err := s.path(id)
	if err != nil {
		return model.SessionState{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.SessionState{}, ErrNotFound
		}
		return model.SessionState{}, fmt.Errorf("read session %s: %w", id, err)
	}

	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.SessionState{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return state, nil
}

// Save encodes the snapshot and atomically replaces the session document.
func (s *FileStore) Save(ctx context.Context, id string, state model.SessionState) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.root, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session %s: %w", id, err)
	}
	return nil
}
