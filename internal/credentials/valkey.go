package credentials

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/valkey-io/valkey-go"

	"github.com/teemow/freetime/internal/logging"
)

// DefaultValkeyKeyPrefix is prepended to every credential key.
const DefaultValkeyKeyPrefix = "freetime:cred:"

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
)

// ValkeyConfig holds connection settings for the Valkey credential backend.
type ValkeyConfig struct {
	// URL is the Valkey server address (e.g., "valkey.namespace.svc:6379").
	URL string

	// Password for Valkey authentication (optional).
	Password string

	// TLSEnabled enables TLS for Valkey connections.
	TLSEnabled bool

	// TLSCAFile is an optional CA certificate for verifying the server.
	TLSCAFile string

	// KeyPrefix overrides DefaultValkeyKeyPrefix.
	KeyPrefix string

	// DB is the Valkey database number.
	DB int
}

// Validate checks the configuration for obvious mistakes.
func (c ValkeyConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("valkey url is required when storage type is %q", TypeValkey)
	}
	if c.DB < 0 {
		return fmt.Errorf("valkey db must be non-negative, got %d", c.DB)
	}
	return nil
}

func (c ValkeyConfig) keyPrefix() string {
	if c.KeyPrefix == "" {
		return DefaultValkeyKeyPrefix
	}
	return c.KeyPrefix
}

func (c ValkeyConfig) clientOption() (valkey.ClientOption, error) {
	opt := valkey.ClientOption{
		InitAddress: []string{c.URL},
		Password:    c.Password,
		SelectDB:    c.DB,
	}
	if !c.TLSEnabled {
		return opt, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.TLSCAFile != "" {
		pem, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return opt, fmt.Errorf("failed to read valkey CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return opt, fmt.Errorf("no certificates found in %s", c.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}
	opt.TLSConfig = tlsConfig
	return opt, nil
}

// ValkeyStore keeps credentials in Valkey hashes, one hash per user.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	logger logging.Logger
}

// NewValkeyStore connects to Valkey and returns a store backed by it.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := cfg.clientOption()
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return newValkeyStoreWithClient(client, cfg.keyPrefix()), nil
}

// newValkeyStoreWithClient wraps an existing client. The store takes
// ownership and closes it in Close.
func newValkeyStoreWithClient(client valkey.Client, prefix string) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		prefix: prefix,
		logger: logging.DefaultLogger(),
	}
}

// SetLogger sets a custom logger for the store.
func (s *ValkeyStore) SetLogger(logger logging.Logger) {
	s.logger = logger
}

func (s *ValkeyStore) key(userID string) string {
	return s.prefix + userID
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, userID string) (Credential, error) {
	if err := ValidateUserID(userID); err != nil {
		return Credential{}, err
	}

	fields, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.key(userID)).Build()).AsStrMap()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read credential: %w", err)
	}
	if len(fields) == 0 {
		return Credential{}, ErrNotFound
	}
	return Credential{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
	}, nil
}

// SetAccessToken implements Store.
func (s *ValkeyStore) SetAccessToken(ctx context.Context, userID, accessToken string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	key := s.key(userID)
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to check credential: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	cmd := s.client.B().Hset().Key(key).FieldValue().FieldValue(fieldAccessToken, accessToken).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	s.logger.Debug("Updated access token", logging.UserHash(userID), "token", logging.SanitizeToken(accessToken))
	return nil
}

// Save implements Store.
func (s *ValkeyStore) Save(ctx context.Context, userID string, cred Credential) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	cmd := s.client.B().Hset().Key(s.key(userID)).FieldValue().
		FieldValue(fieldAccessToken, cred.AccessToken).
		FieldValue(fieldRefreshToken, cred.RefreshToken).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	s.logger.Debug("Saved credential", logging.UserHash(userID))
	return nil
}

// Delete implements Store.
func (s *ValkeyStore) Delete(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Close releases the Valkey connection.
func (s *ValkeyStore) Close() {
	s.client.Close()
}
