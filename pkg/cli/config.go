package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/maafw/pkg/artifact"
)

const (
	// DefaultBaseDir is the base configuration directory name.
	DefaultBaseDir = ".maafw"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
)

// ErrNoProfile is returned when no profile is named and none is current.
var ErrNoProfile = errors.New("no profile selected")

// Config is the configuration of one CLI app.
type Config struct {
	AppName string `yaml:"-"`

	CurrentProfile string              `yaml:"current_profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles,omitempty"`

	configPath string
}

// Profile describes one device setup: where the library lives, how to reach
// the device and which resource bundles to load.
type Profile struct {
	Name string `yaml:"name" json:"name"`

	// Library is the MaaFramework shared library or the directory holding
	// it. Empty uses the default search.
	Library string `yaml:"library,omitempty" json:"library,omitempty"`

	AdbPath    string `yaml:"adb_path,omitempty" json:"adb_path,omitempty"`
	AdbAddress string `yaml:"adb_address,omitempty" json:"adb_address,omitempty"`
	// AdbConfig is the extra JSON config passed to the adb controller.
	AdbConfig string `yaml:"adb_config,omitempty" json:"adb_config,omitempty"`
	// ScreencapMethods and InputMethods are adb method bitmasks. Zero
	// lets the library choose.
	ScreencapMethods uint64 `yaml:"screencap_methods,omitempty" json:"screencap_methods,omitempty"`
	InputMethods     uint64 `yaml:"input_methods,omitempty" json:"input_methods,omitempty"`

	// Bundles are resource directories loaded in order.
	Bundles []string `yaml:"bundles,omitempty" json:"bundles,omitempty"`

	// HistoryDir overrides the default history location.
	HistoryDir string `yaml:"history_dir,omitempty" json:"history_dir,omitempty"`

	// LogDir is passed to the library's log option.
	LogDir string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`

	Artifacts *artifact.Config `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
}

// LoadConfig loads the configuration of appName from the default location.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from customPath, or from the
// default location when customPath is empty. A missing file yields an empty
// configuration.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	cfg := &Config{
		AppName:    appName,
		Profiles:   make(map[string]*Profile),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	for name, p := range cfg.Profiles {
		if p == nil {
			p = &Profile{}
			cfg.Profiles[name] = p
		}
		p.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration with owner-only permissions, since
// profiles may carry S3 secrets.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) Path() string { return c.configPath }

func (c *Config) Dir() string { return filepath.Dir(c.configPath) }

// AddProfile adds or replaces a profile. The first profile becomes current.
func (c *Config) AddProfile(name string, p *Profile) error {
	if err := validateProfileName(name); err != nil {
		return err
	}
	p.Name = name
	c.Profiles[name] = p
	if c.CurrentProfile == "" {
		c.CurrentProfile = name
	}
	return c.Save()
}

func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

func (c *Config) UseProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) Profile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// ResolveProfile returns the named profile, or the current one when name
// is empty.
func (c *Config) ResolveProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return nil, ErrNoProfile
	}
	return c.Profile(name)
}

// ProfileNames returns the profile names sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Redacted returns a copy of p with secrets masked, for display.
func (p *Profile) Redacted() *Profile {
	cp := *p
	cp.Bundles = slices.Clone(p.Bundles)
	if p.Artifacts != nil {
		a := *p.Artifacts
		if a.S3 != nil {
			s := *a.S3
			s.AccessKey = MaskSecret(s.AccessKey)
			s.SecretKey = MaskSecret(s.SecretKey)
			a.S3 = &s
		}
		cp.Artifacts = &a
	}
	return &cp
}

func validateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\ \t\n") {
		return fmt.Errorf("profile name %q must not contain separators or spaces", name)
	}
	return nil
}

// MaskSecret masks all but the first and last four characters.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
