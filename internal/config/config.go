package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vango-dev/islands/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "islands.json"

	// DefaultPrefix is the directive attribute prefix.
	DefaultPrefix = "data-wp-"

	// DefaultMaxEffectRuns caps re-entrant runs of one effect per flush.
	DefaultMaxEffectRuns = 100

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultPages is the default directory of pages served in dev.
	DefaultPages = "pages"
)

// Config represents the complete islands.json configuration.
type Config struct {
	// Prefix is the directive attribute prefix.
	Prefix string `json:"prefix,omitempty"`

	// MaxEffectRuns caps re-entrant runs of one effect per flush.
	MaxEffectRuns int `json:"maxEffectRuns,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty"`

	// S3 locates statically exported pages for the S3 fetcher.
	S3 S3Config `json:"s3,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Pages is the directory of HTML pages to serve.
	Pages string `json:"pages,omitempty"`

	// ServerDirectives runs the runtime over each page before serving it.
	// Turning it off serves the raw markup, which isolates hydration bugs
	// from pre-processing bugs.
	ServerDirectives *bool `json:"serverDirectives,omitempty"`

	// Watch reloads connected browsers when a page changes.
	Watch *bool `json:"watch,omitempty"`
}

// S3Config locates exported pages in a bucket.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for islands.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E120").
				WithDetail("No islands.json found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse islands.json: " + err.Error()).
			WithSuggestion("Check that islands.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.MaxEffectRuns == 0 {
		c.MaxEffectRuns = DefaultMaxEffectRuns
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Pages == "" {
		c.Dev.Pages = DefaultPages
	}
	if c.Dev.ServerDirectives == nil {
		c.Dev.ServerDirectives = boolPtr(true)
	}
	if c.Dev.Watch == nil {
		c.Dev.Watch = boolPtr(true)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E121").
			WithDetail("Port must be between 0 and 65535")
	}
	if c.MaxEffectRuns < 0 {
		return errors.New("E121").
			WithDetail("maxEffectRuns must not be negative")
	}
	if !strings.HasPrefix(c.Prefix, "data-") || !strings.HasSuffix(c.Prefix, "-") {
		return errors.New("E121").
			WithDetail("prefix must look like data-<name>-, got " + strconv.Quote(c.Prefix))
	}
	return nil
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// PagesPath returns the absolute path to the pages directory.
func (c *Config) PagesPath() string {
	if filepath.IsAbs(c.Dev.Pages) {
		return c.Dev.Pages
	}
	return filepath.Join(c.Dir(), c.Dev.Pages)
}

// ServerDirectives reports whether the dev server pre-processes pages.
func (c *Config) ServerDirectives() bool {
	return c.Dev.ServerDirectives == nil || *c.Dev.ServerDirectives
}

// WatchEnabled reports whether the dev server watches pages.
func (c *Config) WatchEnabled() bool {
	return c.Dev.Watch == nil || *c.Dev.Watch
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing islands.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E120").
				WithDetail("No islands.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working
// directory or its nearest ancestor holding islands.json. Without one it
// returns defaults rooted at the working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		cfg := New()
		cfg.configPath = filepath.Join(wd, ConfigFileName)
		return cfg, nil
	}

	return Load(root)
}

func boolPtr(b bool) *bool { return &b }
