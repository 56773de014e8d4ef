// Package config loads and saves casm's persistent settings: default CPU,
// per-CPU address-space size, include/macro nesting limits, default output
// format, and listing defaults. Settings are TOML-backed, loaded with
// github.com/BurntSushi/toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds casm's user-facing settings.
type Config struct {
	// Assembler settings
	Assembler struct {
		DefaultCPU     string `toml:"default_cpu"`
		MaxPasses      int    `toml:"max_passes"`
		MaxIncludeDepth int   `toml:"max_include_depth"`
		MaxMacroDepth  int    `toml:"max_macro_depth"`
		CaseSensitive  bool   `toml:"case_sensitive_labels"`
	} `toml:"assembler"`

	// AddressSpace maps a CPU name to its address-space modulus, so a user
	// can widen or shrink a backend's wraparound without recompiling (e.g.
	// restricting the 65C816 to bank zero for a small ROM).
	AddressSpace map[string]int `toml:"address_space"`

	// Output settings
	Output struct {
		DefaultFormat string `toml:"default_format"`
		IntelHexFill  int    `toml:"intel_hex_fill_byte"`
		IntelHexWidth int    `toml:"intel_hex_record_width"`
	} `toml:"output"`

	// Listing settings
	Listing struct {
		Enabled   bool `toml:"enabled"`
		DumpHex   bool `toml:"dump_hex"`
		DumpPC    bool `toml:"dump_pc"`
		RMBlank   bool `toml:"remove_blank_lines"`
	} `toml:"listing"`
}

// DefaultConfig returns casm's built-in settings, used whenever no config
// file is present.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Assembler.DefaultCPU = "Z80"
	cfg.Assembler.MaxPasses = 8
	cfg.Assembler.MaxIncludeDepth = 32
	cfg.Assembler.MaxMacroDepth = 1024
	cfg.Assembler.CaseSensitive = false

	cfg.AddressSpace = map[string]int{
		"Z80":     0x10000,
		"6502":    0x10000,
		"65C816":  0x1000000,
		"GBZ80":   0x10000,
		"SPC700":  0x10000,
	}

	cfg.Output.DefaultFormat = "raw"
	cfg.Output.IntelHexFill = 0xff
	cfg.Output.IntelHexWidth = 16

	cfg.Listing.Enabled = false
	cfg.Listing.DumpHex = true
	cfg.Listing.DumpPC = true
	cfg.Listing.RMBlank = false

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "casm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "casm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back to
// DefaultConfig if it doesn't exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// AddressSpaceFor returns the configured modulus for a CPU name, or the
// given default if unset.
func (c *Config) AddressSpaceFor(cpu string, def int) int {
	if v, ok := c.AddressSpace[cpu]; ok {
		return v
	}
	return def
}
