package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported calendar backends.
const (
	BackendCalDAV = "caldav"
	BackendGoogle = "google"
)

var (
	// ErrNoCalendarURL is returned when the caldav backend has no URL.
	ErrNoCalendarURL = errors.New("CALDAV_URL is not set")
	// ErrUnknownBackend is returned for a backend name that is not supported.
	ErrUnknownBackend = errors.New("unknown calendar backend")
)

// CalDAVConfig holds the CalDAV server settings.
type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Calendar is the display name to discover. When empty URL must point at
	// the calendar collection itself.
	Calendar string `yaml:"calendar"`
}

// GoogleConfig holds the Google Calendar settings.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Account      string `yaml:"account"`
	CalendarID   string `yaml:"calendar_id"`
	TokenDir     string `yaml:"token_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// Backends lists the stores to use, in order. The first one receives
	// added events.
	Backends []string `yaml:"backends"`

	CalDAV CalDAVConfig `yaml:"caldav"`
	Google GoogleConfig `yaml:"google"`

	LogLevel  string `yaml:"log_level"`
	StateFile string `yaml:"state_file"`
	ProdID    string `yaml:"prodid"`
	// Timezone is the IANA zone floating event times are placed in when a
	// store needs one.
	Timezone string `yaml:"timezone"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backends:  []string{BackendCalDAV},
		Google:    GoogleConfig{CalendarID: "primary", TokenDir: "."},
		LogLevel:  "info",
		StateFile: "pending-delete.json",
		ProdID:    "-//calassist//EN",
		Timezone:  "UTC",
	}
}

// Normalize fills in missing values with defaults and cleans up lists.
func (c *Config) Normalize() {
	d := DefaultConfig()

	var backends []string
	for _, b := range c.Backends {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			backends = append(backends, b)
		}
	}
	if len(backends) == 0 {
		backends = d.Backends
	}
	c.Backends = backends

	if c.Google.CalendarID == "" {
		c.Google.CalendarID = d.Google.CalendarID
	}
	if c.Google.TokenDir == "" {
		c.Google.TokenDir = d.Google.TokenDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.StateFile == "" {
		c.StateFile = d.StateFile
	}
	if c.ProdID == "" {
		c.ProdID = d.ProdID
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
}

// Validate reports settings that would make a store unusable.
func (c *Config) Validate() error {
	for _, b := range c.Backends {
		switch b {
		case BackendCalDAV:
			if c.CalDAV.URL == "" {
				return ErrNoCalendarURL
			}
		case BackendGoogle:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBackend, b)
		}
	}
	return nil
}

// Load reads the YAML file at path, if any, then applies the environment.
// An empty path means environment and defaults only.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg.ApplyEnv(lookup)
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides settings with the environment variables that are set.
// NEXTCLOUD_* variables are read as older names of the CALDAV_* ones.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	var backends string
	set(&backends, "CALENDAR_BACKEND")
	if backends != "" {
		c.Backends = strings.Split(backends, ",")
	}

	set(&c.CalDAV.URL, "CALDAV_URL", "NEXTCLOUD_URL")
	set(&c.CalDAV.Username, "CALDAV_USERNAME", "NEXTCLOUD_USERNAME")
	set(&c.CalDAV.Password, "CALDAV_PASSWORD", "NEXTCLOUD_PASSWORD")
	set(&c.CalDAV.Calendar, "CALDAV_CALENDAR_NAME")

	set(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.Google.Account, "GOOGLE_ACCOUNT")
	set(&c.Google.CalendarID, "GOOGLE_CALENDAR_ID")
	set(&c.Google.TokenDir, "GOOGLE_TOKEN_DIR")

	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.StateFile, "CALASSIST_STATE_FILE")
	set(&c.ProdID, "CALASSIST_PRODID")
	set(&c.Timezone, "PRIMARY_TIMEZONE")
}
