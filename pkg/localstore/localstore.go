// Package localstore is a disk-backed blob store used when no cloud store is
// configured. Files are served back under PublicPrefix.
package localstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPublicPrefix is the URL path the stored files are served from.
const DefaultPublicPrefix = "/uploads"

// Store writes blobs beneath a root directory.
type Store struct {
	root         string
	publicPrefix string
	now          func() time.Time
	logger       zerolog.Logger
}

// New creates the root directory if needed and returns a store.
func New(root, publicPrefix string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload directory must not be empty")
	}
	if publicPrefix == "" {
		publicPrefix = DefaultPublicPrefix
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Store{
		root:         root,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		now:          time.Now,
		logger:       logger.With().Str("component", "local_store").Logger(),
	}, nil
}

// Root returns the directory the store writes to.
func (s *Store) Root() string {
	return s.root
}

// Upload writes the blob to <root>/<yyyy>/<mm>/<random>-<name> and returns its public path.
func (s *Store) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	dir := filepath.Join(s.root, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	fileName := fmt.Sprintf("%s-%s", uuid.NewString()[:8], filepath.Base(name))
	target := filepath.Join(dir, fileName)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	reference := path.Join(s.publicPrefix, now.Format("2006"), now.Format("01"), fileName)
	s.logger.Debug().Str("path", target).Int64("bytes", written).Msg("file stored on disk")
	return reference, nil
}
