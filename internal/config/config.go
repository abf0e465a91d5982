package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/calendar"
	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/google"
	"github.com/teemow/freetime/internal/logging"
)

// DefaultTimezone is used when no working-hours time zone is configured.
const DefaultTimezone = "UTC"

// WorkingHoursConfig describes the weekly working window.
type WorkingHoursConfig struct {
	// Weekdays lists working days by name ("mon", "tuesday", ...).
	Weekdays []string `yaml:"weekdays"`

	// StartHour and EndHour bound the daily window in whole hours.
	// EndHour 24 means midnight.
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`

	// Timezone is an IANA time zone name such as "Europe/Berlin".
	Timezone string `yaml:"timezone"`
}

// GoogleConfig holds the OAuth client registration and calendar selection.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url,omitempty"`
	CalendarID   string `yaml:"calendar_id"`
}

// ValkeyConfig configures the valkey credential backend.
type ValkeyConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password,omitempty"`
	TLSEnabled bool   `yaml:"tls_enabled"`
	TLSCAFile  string `yaml:"tls_ca_file,omitempty"`
	KeyPrefix  string `yaml:"key_prefix,omitempty"`
	DB         int    `yaml:"db"`
}

// StorageConfig selects the credential backend.
type StorageConfig struct {
	// Type is one of "memory", "file" or "valkey".
	Type string `yaml:"type"`

	// Dir is the directory of the file backend. Empty means the user cache dir.
	Dir string `yaml:"dir,omitempty"`

	Valkey ValkeyConfig `yaml:"valkey"`
}

// Config is the top-level application configuration.
type Config struct {
	WorkingHours WorkingHoursConfig `yaml:"working_hours"`
	Google       GoogleConfig       `yaml:"google"`
	Storage      StorageConfig      `yaml:"storage"`

	// DefaultLabel names busy intervals whose event has no title.
	DefaultLabel string `yaml:"default_label"`
}

// DefaultConfig returns the built-in configuration: Monday to Friday,
// 09:00 to 17:00 UTC, the primary calendar and file-backed credentials.
func DefaultConfig() *Config {
	return &Config{
		WorkingHours: WorkingHoursConfig{
			Weekdays:  []string{"mon", "tue", "wed", "thu", "fri"},
			StartHour: availability.DefaultStartHour,
			EndHour:   availability.DefaultEndHour,
			Timezone:  DefaultTimezone,
		},
		Google: GoogleConfig{
			CalendarID: calendar.DefaultCalendarID,
		},
		Storage: StorageConfig{
			Type: credentials.TypeFile,
		},
		DefaultLabel: availability.DefaultLabel,
	}
}

// Normalize fills in missing values so that partially filled files behave
// like the defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if len(c.WorkingHours.Weekdays) == 0 {
		c.WorkingHours.Weekdays = def.WorkingHours.Weekdays
	}
	if c.WorkingHours.StartHour == 0 && c.WorkingHours.EndHour == 0 {
		c.WorkingHours.StartHour = def.WorkingHours.StartHour
		c.WorkingHours.EndHour = def.WorkingHours.EndHour
	}
	if c.WorkingHours.Timezone == "" {
		c.WorkingHours.Timezone = def.WorkingHours.Timezone
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = def.Google.CalendarID
	}
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	if c.Storage.Type == "" {
		c.Storage.Type = def.Storage.Type
	}
	if strings.TrimSpace(c.DefaultLabel) == "" {
		c.DefaultLabel = def.DefaultLabel
	}
}

// Validate checks the configuration. It does not require Google client
// credentials, which only the commands talking to Google need.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch c.Storage.Type {
	case credentials.TypeMemory, credentials.TypeFile:
	case credentials.TypeValkey:
		if err := c.valkey().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage type %q (want %s, %s or %s)",
			c.Storage.Type, credentials.TypeMemory, credentials.TypeFile, credentials.TypeValkey)
	}
	return nil
}

// Policy converts the working-hours section into an availability policy.
func (c *Config) Policy() (availability.WorkingHours, error) {
	loc, err := time.LoadLocation(c.WorkingHours.Timezone)
	if err != nil {
		return availability.WorkingHours{}, fmt.Errorf("invalid timezone %q: %w", c.WorkingHours.Timezone, err)
	}
	weekdays, err := availability.ParseWeekdays(c.WorkingHours.Weekdays)
	if err != nil {
		return availability.WorkingHours{}, err
	}
	policy := availability.WorkingHours{
		Weekdays:  weekdays,
		StartHour: c.WorkingHours.StartHour,
		EndHour:   c.WorkingHours.EndHour,
		Location:  loc,
	}
	if err := policy.Validate(); err != nil {
		return availability.WorkingHours{}, fmt.Errorf("invalid working hours: %w", err)
	}
	return policy, nil
}

// OAuth returns the Google OAuth client settings.
func (c *Config) OAuth() google.Config {
	return google.Config{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
	}
}

func (c *Config) valkey() credentials.ValkeyConfig {
	return credentials.ValkeyConfig{
		URL:        c.Storage.Valkey.URL,
		Password:   c.Storage.Valkey.Password,
		TLSEnabled: c.Storage.Valkey.TLSEnabled,
		TLSCAFile:  c.Storage.Valkey.TLSCAFile,
		KeyPrefix:  c.Storage.Valkey.KeyPrefix,
		DB:         c.Storage.Valkey.DB,
	}
}

// NewStore creates the configured credential store. The returned close
// function releases backend connections and is never nil.
func (c *Config) NewStore(logger logging.Logger) (credentials.Store, func(), error) {
	noop := func() {}
	switch c.Storage.Type {
	case credentials.TypeMemory:
		store := credentials.NewMemoryStore()
		store.SetLogger(logger)
		return store, noop, nil
	case credentials.TypeFile:
		store := credentials.NewFileStore(c.Storage.Dir)
		store.SetLogger(logger)
		return store, noop, nil
	case credentials.TypeValkey:
		store, err := credentials.NewValkeyStore(c.valkey())
		if err != nil {
			return nil, noop, err
		}
		store.SetLogger(logger)
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
}

// DefaultPath returns the default config file location,
// ~/.config/freetime/config.yaml on Linux.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "freetime.yaml")
	}
	return filepath.Join(dir, "freetime", "config.yaml")
}

// Load reads the configuration from path and overlays environment
// variables. An empty path means DefaultPath; a missing file at the default
// path yields the defaults, while a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overlays values from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	if v := strings.TrimSpace(getenv("FREETIME_WEEKDAYS")); v != "" {
		c.WorkingHours.Weekdays = splitList(v)
	}
	if err := setInt("FREETIME_START_HOUR", &c.WorkingHours.StartHour); err != nil {
		return err
	}
	if err := setInt("FREETIME_END_HOUR", &c.WorkingHours.EndHour); err != nil {
		return err
	}
	setString("FREETIME_TIMEZONE", &c.WorkingHours.Timezone)
	setString("FREETIME_DEFAULT_LABEL", &c.DefaultLabel)
	setString("FREETIME_CALENDAR_ID", &c.Google.CalendarID)
	setString("FREETIME_STORAGE", &c.Storage.Type)
	setString("FREETIME_STORAGE_DIR", &c.Storage.Dir)

	setString("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	setString("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	setString("GOOGLE_REDIRECT_URL", &c.Google.RedirectURL)

	setString("VALKEY_URL", &c.Storage.Valkey.URL)
	setString("VALKEY_PASSWORD", &c.Storage.Valkey.Password)
	setString("VALKEY_TLS_CA_FILE", &c.Storage.Valkey.TLSCAFile)
	setString("VALKEY_KEY_PREFIX", &c.Storage.Valkey.KeyPrefix)
	if v := strings.TrimSpace(getenv("VALKEY_TLS_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VALKEY_TLS_ENABLED %q: %w", v, err)
		}
		c.Storage.Valkey.TLSEnabled = enabled
	}
	return setInt("VALKEY_DB", &c.Storage.Valkey.DB)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
