package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
)

// Config holds configuration for creating and opening cache files, resolved
// from defaults, config files, and CLI flags (in that order of precedence).
type Config struct {
	MaximumBytes          uint64
	OverwritesOldMessages bool
	HistoryFile           string

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources
}

// fileConfig is the on-disk JSONC shape. MaximumBytes and
// OverwritesOldMessages are pointers so an absent key can be told apart from
// an explicit 0 or false.
type fileConfig struct {
	MaximumBytes          *uint64 `json:"maximum_bytes,omitempty"`
	OverwritesOldMessages *bool   `json:"overwrites_old_messages,omitempty"`
	HistoryFile           string  `json:"history_file,omitempty"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string
	Project string
}

// DefaultConfig returns the default configuration: a 1 MiB circular cache.
func DefaultConfig() Config {
	return Config{
		MaximumBytes:          1 << 20,
		OverwritesOldMessages: true,
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".cacheadvance.json"

// getGlobalConfigPath returns the path to the global config file, preferring
// $XDG_CONFIG_HOME/cacheadvance/config.json and falling back to
// ~/.config/cacheadvance/config.json. Returns "" if neither can be
// determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "cacheadvance", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "cacheadvance", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride            string // working directory; if empty, os.Getwd() is used
	ConfigPath                 string // --config flag value
	MaximumBytesOverride       uint64 // --maximum-bytes flag value; 0 means no override
	OverwritesOldMessagesIsSet bool   // whether --circular/--strict was passed on the CLI
	OverwritesOldMessagesValue bool
	Env                        map[string]string
}

// LoadConfig loads configuration with the following precedence (highest
// wins):
//  1. Defaults
//  2. Global user config (~/.config/cacheadvance/config.json or
//     $XDG_CONFIG_HOME/cacheadvance/config.json)
//  3. Project config: the explicit file named via --config if non-empty
//     (it must exist), otherwise .cacheadvance.json in the working directory
//     if it exists; the two are never both loaded
//  4. CLI overrides
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.MaximumBytesOverride != 0 {
		cfg.MaximumBytes = input.MaximumBytesOverride
	}

	if input.OverwritesOldMessagesIsSet {
		cfg.OverwritesOldMessages = input.OverwritesOldMessagesValue
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadGlobalConfig(env map[string]string) (fileConfig, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return fileConfig{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return fileConfig{}, "", err
	}

	if !loaded {
		return fileConfig{}, "", nil
	}

	return cfg, path, nil
}

// loadProjectConfig loads the project config file (.cacheadvance.json) or an
// explicit config file named via configPath.
func loadProjectConfig(workDir, configPath string) (fileConfig, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, statErr := os.Stat(cfgFile); statErr != nil {
			return fileConfig{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return fileConfig{}, "", err
	}

	if !loaded {
		return fileConfig{}, "", nil
	}

	return cfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing file
// returns a zero fileConfig and loaded=false rather than an error.
func loadConfigFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s: %w", errConfigFileRead, path, err)
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

// parseConfig reads cacheadvance's config format, JSON-with-comments (JSONC)
// via hujson, standardizing it to plain JSON before unmarshaling.
func parseConfig(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base Config, overlay fileConfig) Config {
	if overlay.MaximumBytes != nil {
		base.MaximumBytes = *overlay.MaximumBytes
	}

	if overlay.OverwritesOldMessages != nil {
		base.OverwritesOldMessages = *overlay.OverwritesOldMessages
	}

	if overlay.HistoryFile != "" {
		base.HistoryFile = overlay.HistoryFile
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.MaximumBytes == 0 {
		return fmt.Errorf("%w: maximum_bytes cannot be 0", errConfigInvalid)
	}

	return nil
}
