package credentials

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when no credential is on file for a user.
var ErrNotFound = errors.New("credential not found")

// Credential is the OAuth2 token pair held for a single user.
// The access token is short-lived and replaceable; the refresh token is
// long-lived and only ever stored here.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Store holds per-user credentials.
type Store interface {
	// Get returns the credential for userID or ErrNotFound.
	Get(ctx context.Context, userID string) (Credential, error)

	// SetAccessToken replaces the access token of an existing credential.
	// It returns ErrNotFound if the user has no credential on file.
	SetAccessToken(ctx context.Context, userID, accessToken string) error

	// Save stores a complete credential, replacing any previous one.
	Save(ctx context.Context, userID string, cred Credential) error

	// Delete removes the credential for userID. Deleting a missing user is not an error.
	Delete(ctx context.Context, userID string) error
}

// Storage backend types.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeValkey = "valkey"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)

// ValidateUserID checks that a user identifier is non-empty and safe to use
// as a storage key or file name component.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if len(userID) > 254 {
		return fmt.Errorf("user id too long: %d characters", len(userID))
	}
	if !userIDRegex.MatchString(userID) {
		return fmt.Errorf("invalid user id %q: only letters, digits and _ . @ + - are allowed", userID)
	}
	if userID == "." || userID == ".." {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}
