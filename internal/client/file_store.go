package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// ErrInFlight is returned while another role selection holds the lock.
var ErrInFlight = errors.New("another role selection is in progress")

// staleLockAge is how old a lock file may get before it is considered abandoned.
const staleLockAge = 2 * time.Minute

type sessionFile struct {
	AccessToken  string         `yaml:"access_token"`
	RefreshToken string         `yaml:"refresh_token"`
	ExpiresAt    time.Time      `yaml:"expires_at"`
	UserID       string         `yaml:"user_id"`
	Email        string         `yaml:"email"`
	Metadata     map[string]any `yaml:"metadata,omitempty"`
}

// FileSessionStore keeps the current session as YAML in a private directory.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore stores under dir, created on first save.
func NewFileSessionStore(dir string) *FileSessionStore {
	return &FileSessionStore{dir: dir}
}

func (s *FileSessionStore) path() string { return filepath.Join(s.dir, "session.yaml") }

// Load returns the saved session, or nil when there is none.
func (s *FileSessionStore) Load() (*domain.Session, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f sessionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path(), err)
	}
	if f.AccessToken == "" {
		return nil, nil
	}
	return &domain.Session{
		AccessToken:  f.AccessToken,
		RefreshToken: f.RefreshToken,
		ExpiresAt:    f.ExpiresAt,
		User:         domain.IdentityUser{ID: f.UserID, Email: f.Email, Metadata: f.Metadata},
	}, nil
}

// Save replaces the saved session.
func (s *FileSessionStore) Save(session *domain.Session) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(sessionFile{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt.UTC(),
		UserID:       session.User.ID,
		Email:        session.User.Email,
		Metadata:     session.User.Metadata,
	})
	if err != nil {
		return err
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// Clear forgets the saved session.
func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Lock takes the role-selection lock, failing with ErrInFlight while another process
// holds it.
func (s *FileSessionStore) Lock() (func(), error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, "role.lock")
	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) > staleLockAge {
		_ = os.Remove(path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}
