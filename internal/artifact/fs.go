package artifact

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FSStore writes artifacts as <id>.mp4 files under a base directory and
// returns filesystem paths as locators.
type FSStore struct {
	dir       string
	retention RetentionPolicy
}

func NewFSStore(dir string, retention RetentionPolicy) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FSStore{dir: dir, retention: retention}, nil
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.dir, id+".mp4")
}

func (s *FSStore) Store(_ context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", id, err)
	}
	return id, nil
}

func (s *FSStore) Locate(_ context.Context, id string) (string, error) {
	p := s.path(id)
	if _, err := os.Stat(p); err != nil {
		return "", ErrNotFound
	}
	return p, nil
}

func (s *FSStore) Read(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *FSStore) Close() error { return nil }

func (s *FSStore) sweep(now time.Time) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("artifact: sweep read dir: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if s.retention.expired(info.ModTime(), now) {
			_ = os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
}
