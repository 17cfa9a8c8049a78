// Package config loads hyena-release settings.
//
// Settings come from, in increasing precedence: built-in defaults, the
// optional YAML file .hyena/release.yaml under the repository root, and
// environment variables. Command-line flags are applied last by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hyena-release/internal/build"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/ledger"
	"github.com/roach88/hyena-release/internal/manifest"
	"github.com/roach88/hyena-release/internal/pin"
)

// DefaultFile is the config path relative to the repository root.
const DefaultFile = ".hyena/release.yaml"

// Environment variables read by Load.
const (
	EnvBuildDate  = "BUILD_DATE"
	EnvCommit     = "HYENA_COMMIT"
	EnvReleaseURL = "HYENA_RELEASE_URL"
	EnvInstallDir = "HYENA_INSTALL_DIR"
	EnvHistoryDB  = "HYENA_HISTORY_DB"
	EnvArch       = "HYENA_ARCH"
	EnvOS         = "HYENA_OS"
)

// Config is the resolved configuration. Paths are absolute after Load.
type Config struct {
	// Root is the repository root every relative path resolves against.
	Root string `yaml:"-"`

	ReleaseDir string `yaml:"release_dir"`
	InstallDir string `yaml:"install_dir"`
	ReleaseURL string `yaml:"release_url"`
	HistoryDB  string `yaml:"history_db"`
	PinFile    string `yaml:"pin_file"`
	PinLedger  string `yaml:"pin_ledger"`

	Build BuildConfig `yaml:"build"`

	// Environment-only settings.
	BuildDate string `yaml:"-"`
	Commit    string `yaml:"-"`
	Arch      string `yaml:"-"`
	OS        string `yaml:"-"`
}

// BuildConfig describes the compiled-build step.
type BuildConfig struct {
	Dir     string   `yaml:"dir"`
	Command []string `yaml:"command"`
	Output  string   `yaml:"output"`
	Env     []string `yaml:"env"`
}

// Default returns the built-in configuration with relative paths.
func Default() Config {
	return Config{
		ReleaseDir: "release",
		InstallDir: "bin",
		HistoryDB:  ".hyena/history.db",
		PinFile:    pin.File,
		PinLedger:  ledger.PinFile,
		Build: BuildConfig{
			Dir:     ".",
			Command: append([]string(nil), build.DefaultCommand...),
			Output:  build.DefaultOutput,
		},
	}
}

// Load resolves configuration for root. An empty path means DefaultFile
// under root, which may be absent; an explicit path must exist.
// getenv is usually os.Getenv.
func Load(root, path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve root: %w", err)
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(absRoot, DefaultFile)
	}
	// #nosec G304 -- config path is chosen by the operator.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, failure.Wrap(err, failure.KindConfiguration, failure.CodeConfigInvalid,
				fmt.Sprintf("parse %s", path))
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// The default file is optional.
	case errors.Is(err, os.ErrNotExist):
		return Config{}, failure.Wrap(err, failure.KindConfiguration, failure.CodeConfigInvalid,
			fmt.Sprintf("config file %s not found", path))
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(getenv)
	cfg.Root = absRoot
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.BuildDate, EnvBuildDate)
	set(&c.Commit, EnvCommit)
	set(&c.ReleaseURL, EnvReleaseURL)
	set(&c.InstallDir, EnvInstallDir)
	set(&c.HistoryDB, EnvHistoryDB)
	set(&c.Arch, EnvArch)
	set(&c.OS, EnvOS)
}

func (c *Config) resolve() {
	c.ReleaseDir = c.Abs(c.ReleaseDir)
	c.InstallDir = c.Abs(c.InstallDir)
	c.PinFile = c.Abs(c.PinFile)
	c.PinLedger = c.Abs(c.PinLedger)
	c.Build.Dir = c.Abs(c.Build.Dir)
	if c.HistoryDB != "" {
		c.HistoryDB = c.Abs(c.HistoryDB)
	}
}

// Abs resolves p against Root. Absolute paths and "" are returned unchanged.
func (c Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	var problems []string
	if c.ReleaseDir == "" {
		problems = append(problems, "release_dir is empty")
	}
	if c.InstallDir == "" {
		problems = append(problems, "install_dir is empty")
	}
	if c.PinFile == "" {
		problems = append(problems, "pin_file is empty")
	}
	if c.PinLedger == "" {
		problems = append(problems, "pin_ledger is empty")
	}
	if len(c.Build.Command) == 0 {
		problems = append(problems, "build.command is empty")
	}
	if c.Build.Output == "" {
		problems = append(problems, "build.output is empty")
	}
	for _, kv := range c.Build.Env {
		if !strings.Contains(kv, "=") {
			problems = append(problems, fmt.Sprintf("build.env entry %q is not KEY=VALUE", kv))
		}
	}
	if len(problems) > 0 {
		return failure.New(failure.KindConfiguration, failure.CodeConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ManifestPath returns the release manifest location.
func (c Config) ManifestPath() string {
	return filepath.Join(c.ReleaseDir, manifest.File)
}

// BuildLedgerPath returns the ephemeral build ledger location.
func (c Config) BuildLedgerPath() string {
	return filepath.Join(c.ReleaseDir, ledger.BuildFile)
}
