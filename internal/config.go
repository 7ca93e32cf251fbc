package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/halvard/munin/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Mirror MirrorConfig      `yaml:"mirror"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Mirror.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RepoConfig identifies one mirrored repository.
type RepoConfig struct {
	Owner  string `yaml:"owner"`
	Name   string `yaml:"name"`
	Branch string `yaml:"branch"`
	Token  string `yaml:"token"`
}

// Validate validates a repo entry.
func (c *RepoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Branch, validation.Required),
	)
}

// Repo converts the entry to its domain form.
func (c *RepoConfig) Repo() models.Repo {
	return models.Repo{Owner: c.Owner, Name: c.Name, Branch: c.Branch, Token: c.Token}
}

// MirrorConfig lists the repositories to mirror and the optional scratch
// directory for external editing.
type MirrorConfig struct {
	Repos      []RepoConfig `yaml:"repos"`
	Scratch    string       `yaml:"scratch"`
	APIBaseURL string       `yaml:"api_base_url"`
}

// Validate validates the mirror configuration.
func (c *MirrorConfig) Validate() error {
	if len(c.Repos) == 0 {
		return fmt.Errorf("mirror: at least one repo is required")
	}
	seen := make(map[models.RepoKey]bool, len(c.Repos))
	for i := range c.Repos {
		if err := c.Repos[i].Validate(); err != nil {
			return fmt.Errorf("mirror: repo %d: %w", i, err)
		}
		key := c.Repos[i].Repo().Key()
		if seen[key] {
			return fmt.Errorf("mirror: duplicate repo %s", key)
		}
		seen[key] = true
	}
	return nil
}

// RepoList returns the configured repos in domain form.
func (c *MirrorConfig) RepoList() []models.Repo {
	out := make([]models.Repo, len(c.Repos))
	for i := range c.Repos {
		out[i] = c.Repos[i].Repo()
	}
	return out
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./munin.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
