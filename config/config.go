// Package config loads the bridge configuration from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/etnz/apnee/logger"
)

// DefaultFileName is the name of the data file looked up on the user's Drive.
const DefaultFileName = "apnee.json"

// Config holds every setting of the bridge.
type Config struct {
	// FileName is the name of the data file on Drive.
	FileName string `toml:"file_name" env:"APNEE_FILE_NAME"`

	// OAuth client, as registered in the Google Cloud Console for a "Desktop app".
	ClientID     string `toml:"client_id" env:"APNEE_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"APNEE_CLIENT_SECRET"`
	// RedirectURL is the loopback address the consent page redirects to.
	RedirectURL string `toml:"redirect_url" env:"APNEE_REDIRECT_URL"`
	// TokenPath is where the OAuth token is stored.
	TokenPath string `toml:"token_path" env:"APNEE_TOKEN_PATH"`

	// Listen is the address the HTTP server binds.
	Listen       string   `toml:"listen" env:"APNEE_LISTEN"`
	AllowOrigins []string `toml:"allow_origins" env:"APNEE_ALLOW_ORIGINS" envSeparator:","`
	// StaticDir, when set, is served under /app/.
	StaticDir string `toml:"static_dir" env:"APNEE_STATIC_DIR"`

	Log  logger.Config `toml:"log" envPrefix:"APNEE_LOG_"`
	Rate RateConfig    `toml:"rate" envPrefix:"APNEE_RATE_"`
}

// RateConfig limits the calls made to the Drive API.
type RateConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `toml:"burst" env:"BURST"`
}

// Dir returns the directory holding the configuration and the token.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "apnee"), nil
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		FileName:     DefaultFileName,
		RedirectURL:  "http://localhost:8085",
		Listen:       "localhost:8080",
		AllowOrigins: []string{"*"},
		Log:          logger.DefaultConfig(),
		Rate:         RateConfig{RequestsPerSecond: 8, Burst: 10},
	}
	if dir, err := Dir(); err == nil {
		cfg.TokenPath = filepath.Join(dir, "token.json")
	}
	return cfg
}

// Load reads the configuration: defaults first, then the TOML file at path, then the
// APNEE_* environment variables. A missing file is not an error. An empty path means
// DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to talk to Drive.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.FileName) == "" {
		errs = append(errs, errors.New("file_name is empty"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("client_id is empty, set it in the config file or APNEE_CLIENT_ID"))
	}
	if !strings.HasPrefix(c.RedirectURL, "http://") {
		errs = append(errs, fmt.Errorf("redirect_url %q must be a loopback http:// address", c.RedirectURL))
	}
	if c.TokenPath == "" {
		errs = append(errs, errors.New("token_path is empty"))
	}
	if c.Rate.RequestsPerSecond <= 0 || c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("rate must be positive"))
	}
	return errors.Join(errs...)
}
