package services

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/amirphl/rsvp-relay/config"
	"github.com/amirphl/rsvp-relay/utils"
)

// MediaStore persists generated files and returns the path they are served under
type MediaStore interface {
	// Save writes data below subdir and returns the public relative path, e.g. /uploads/reports/2024-01-02/x.xlsx
	Save(ctx context.Context, subdir, filename string, data []byte) (string, error)
	// Open reads back a file previously returned by Save
	Open(ctx context.Context, storedPath string) ([]byte, error)
}

// LocalMediaStore keeps files on the local disk below StorageDir
type LocalMediaStore struct {
	storageDir string
	urlPrefix  string
}

func NewLocalMediaStore(cfg config.MediaConfig) *LocalMediaStore {
	prefix := "/" + strings.Trim(cfg.URLPrefix, "/")
	return &LocalMediaStore{storageDir: cfg.StorageDir, urlPrefix: prefix}
}

func (s *LocalMediaStore) Save(ctx context.Context, subdir, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filename = filepath.Base(filepath.Clean("/" + filename))
	if filename == "/" || filename == "." {
		return "", fmt.Errorf("invalid filename")
	}
	subdir = strings.Trim(filepath.ToSlash(filepath.Clean("/"+subdir)), "/")

	dateDir := utils.UTCNow().Format(utils.DateLayout)
	rel := path.Join(subdir, dateDir, filename)
	full := filepath.Join(s.storageDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return s.urlPrefix + "/" + rel, nil
}

func (s *LocalMediaStore) Open(ctx context.Context, storedPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, ok := strings.CutPrefix(storedPath, s.urlPrefix+"/")
	if !ok {
		return nil, fmt.Errorf("path is outside media store: %s", storedPath)
	}
	cleaned := path.Clean("/" + rel)
	if cleaned != "/"+rel {
		return nil, fmt.Errorf("invalid media path: %s", storedPath)
	}
	return os.ReadFile(filepath.Join(s.storageDir, filepath.FromSlash(rel)))
}
