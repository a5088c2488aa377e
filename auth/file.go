package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MailerSuite/Final-sub009/errors"
)

// FileStore keeps the token in a JSON file readable only by its owner.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

type fileToken struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// NewFileStore returns a store backed by path. The file is created on the
// first SetToken.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger.With("component", "auth.file")}
}

func (s *FileStore) Token(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.WrapTransient(err, "auth", "FileStore.Token", "read token file")
	}

	var ft fileToken
	if err := json.Unmarshal(raw, &ft); err != nil {
		return "", false, errors.WrapInvalid(errors.ErrParsingFailed, "auth", "FileStore.Token",
			"decode token file "+s.path)
	}
	return ft.Token, ft.Token != "", nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "auth", "FileStore.SetToken", "token is required")
	}

	raw, err := json.Marshal(fileToken{Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "auth", "FileStore.SetToken", "encode token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.WrapFatal(err, "auth", "FileStore.SetToken", "create token directory")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.WrapFatal(err, "auth", "FileStore.SetToken", "write token file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapFatal(err, "auth", "FileStore.SetToken", "replace token file")
	}

	s.logger.Debug("Token saved", "path", s.path)
	return nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.WrapTransient(err, "auth", "FileStore.Clear", "remove token file")
	}
	s.logger.Debug("Token cleared", "path", s.path)
	return nil
}
