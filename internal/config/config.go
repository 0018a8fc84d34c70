// Package config loads odapt configuration files.
//
// A configuration file is YAML:
//
//	protocol: sqlite
//	url: ./northwind.db
//	schema_dir: ./schema
//	ignore_resource_not_found: true
//	include_resource_type_in_entry_properties: false
//	pluralize: true
//
// Relative paths are resolved against the directory of the file.
//
// Credentials may be kept out of the file. ODAPT_USERNAME and ODAPT_PASSWORD
// from the environment, or from a .env file next to the configuration file,
// override the file values. The process environment wins over .env.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/odapt/internal/adapter"
	"github.com/roach88/odapt/internal/client"
)

// DefaultProtocol is used when the file names none.
const DefaultProtocol = "sqlite"

// Environment variables overriding the file credentials.
const (
	EnvUsername = "ODAPT_USERNAME"
	EnvPassword = "ODAPT_PASSWORD"
)

// Config is the parsed configuration file.
type Config struct {
	// Protocol selects the adapter factory in the registry.
	Protocol string `yaml:"protocol"`

	// URL is the base address of the service. For the sqlite protocol it is
	// the database file path.
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// SchemaDir holds the CUE schema files of the service.
	SchemaDir string `yaml:"schema_dir"`

	IgnoreResourceNotFound               bool `yaml:"ignore_resource_not_found"`
	IncludeResourceTypeInEntryProperties bool `yaml:"include_resource_type_in_entry_properties"`

	// Pluralize enables English singular/plural fallback when resolving
	// entity set names.
	Pluralize bool `yaml:"pluralize"`
}

// Load reads, parses and validates a configuration file. Relative URL and
// SchemaDir paths of sqlite configurations are made relative to the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	dir := filepath.Dir(path)
	env, err := readEnv(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := parse(data, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(dir)
	return cfg, nil
}

// readEnv collects credential overrides from dir/.env and the process
// environment. A missing .env file is not an error.
func readEnv(dir string) (map[string]string, error) {
	env := map[string]string{}
	dotenv := filepath.Join(dir, ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if env, err = godotenv.Read(dotenv); err != nil {
			return nil, fmt.Errorf("failed to read .env file: %w", err)
		}
	}
	for _, key := range []string{EnvUsername, EnvPassword} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

// Parse parses and validates configuration YAML. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	return parse(data, nil)
}

func parse(data []byte, env map[string]string) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if v, ok := env[EnvUsername]; ok {
		cfg.Username = v
	}
	if v, ok := env[EnvPassword]; ok {
		cfg.Password = v
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
}

// Validate checks required fields. Every problem is reported.
func (c *Config) Validate() error {
	errs := new(multierror.Error)
	if c.URL == "" {
		errs = multierror.Append(errs, errors.New("url is required"))
	}
	if c.SchemaDir == "" {
		errs = multierror.Append(errs, errors.New("schema_dir is required"))
	}
	if c.Password != "" && c.Username == "" {
		errs = multierror.Append(errs, errors.New("password given without username"))
	}
	return errs.ErrorOrNil()
}

func (c *Config) resolvePaths(base string) {
	if c.Protocol == DefaultProtocol && !filepath.IsAbs(c.URL) {
		c.URL = filepath.Join(base, c.URL)
	}
	if !filepath.IsAbs(c.SchemaDir) {
		c.SchemaDir = filepath.Join(base, c.SchemaDir)
	}
}

// Options returns the adapter options described by the configuration.
func (c *Config) Options() adapter.Options {
	settings := client.Settings{
		BaseURL:  c.URL,
		Username: c.Username,
		Password: c.Password,
	}
	if c.Pluralize {
		settings.Pluralizer = client.EnglishPluralizer{}
	}
	return adapter.Options{
		Settings:                             settings,
		IgnoreResourceNotFound:               c.IgnoreResourceNotFound,
		IncludeResourceTypeInEntryProperties: c.IncludeResourceTypeInEntryProperties,
	}
}
