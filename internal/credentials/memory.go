package credentials

import (
	"context"
	"sync"

	"github.com/teemow/freetime/internal/logging"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	creds  map[string]Credential
	logger logging.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds:  make(map[string]Credential),
		logger: logging.DefaultLogger(),
	}
}

// SetLogger sets a custom logger for the store.
func (s *MemoryStore) SetLogger(logger logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[userID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// SetAccessToken implements Store.
func (s *MemoryStore) SetAccessToken(_ context.Context, userID, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[userID]
	if !ok {
		return ErrNotFound
	}
	cred.AccessToken = accessToken
	s.creds[userID] = cred
	s.logger.Debug("Updated access token", logging.UserHash(userID), "token", logging.SanitizeToken(accessToken))
	return nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, userID string, cred Credential) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[userID] = cred
	s.logger.Debug("Saved credential", logging.UserHash(userID))
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, userID)
	return nil
}

// Len returns the number of stored credentials.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
