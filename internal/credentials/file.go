package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/teemow/freetime/internal/logging"
)

// FileStore keeps one token file per user on disk. Each file holds the
// access token and the refresh token separated by a single space, and is
// written with 0600 permissions.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger logging.Logger
}

// NewFileStore creates a file store rooted at dir. An empty dir selects
// DefaultDir().
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{
		dir:    dir,
		logger: logging.DefaultLogger(),
	}
}

// SetLogger sets a custom logger for the store.
func (s *FileStore) SetLogger(logger logging.Logger) {
	s.logger = logger
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".token")
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, userID string) (Credential, error) {
	if err := ValidateUserID(userID); err != nil {
		return Credential{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(userID)
}

func (s *FileStore) read(userID string) (Credential, error) {
	slurp, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read token file: %w", err)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	switch len(f) {
	case 1:
		return Credential{AccessToken: f[0]}, nil
	case 2:
		return Credential{AccessToken: f[0], RefreshToken: f[1]}, nil
	default:
		return Credential{}, fmt.Errorf("invalid token format in %s", s.path(userID))
	}
}

// SetAccessToken implements Store.
func (s *FileStore) SetAccessToken(_ context.Context, userID, accessToken string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.read(userID)
	if err != nil {
		return err
	}
	cred.AccessToken = accessToken
	return s.write(userID, cred)
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, userID string, cred Credential) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(userID, cred)
}

func (s *FileStore) write(userID string, cred Credential) error {
	if cred.AccessToken == "" || strings.ContainsAny(cred.AccessToken+cred.RefreshToken, " \t\r\n") {
		return fmt.Errorf("tokens must be non-empty and contain no whitespace")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data := cred.AccessToken
	if cred.RefreshToken != "" {
		data += " " + cred.RefreshToken
	}

	// Write to a temp file first so a crash never leaves a truncated token.
	tmp, err := os.CreateTemp(s.dir, userID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(userID)); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	s.logger.Debug("Wrote token file", logging.UserHash(userID))
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// DefaultDir returns the per-user cache directory used by the file store.
func DefaultDir() string {
	return filepath.Join(userCacheDir(), "freetime")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return os.TempDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
