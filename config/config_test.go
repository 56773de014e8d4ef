package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Assembler.DefaultCPU != "Z80" {
		t.Errorf("Expected DefaultCPU=Z80, got %s", cfg.Assembler.DefaultCPU)
	}
	if cfg.Assembler.MaxPasses != 8 {
		t.Errorf("Expected MaxPasses=8, got %d", cfg.Assembler.MaxPasses)
	}
	if cfg.Assembler.MaxMacroDepth != 1024 {
		t.Errorf("Expected MaxMacroDepth=1024, got %d", cfg.Assembler.MaxMacroDepth)
	}

	if cfg.AddressSpaceFor("65C816", 0) != 0x1000000 {
		t.Errorf("Expected 65C816 address space 0x1000000, got %#x", cfg.AddressSpaceFor("65C816", 0))
	}
	if cfg.AddressSpaceFor("Z80", 0) != 0x10000 {
		t.Errorf("Expected Z80 address space 0x10000, got %#x", cfg.AddressSpaceFor("Z80", 0))
	}
	if cfg.AddressSpaceFor("Unknown", 0x1234) != 0x1234 {
		t.Errorf("Expected fallback for unknown CPU")
	}

	if cfg.Output.DefaultFormat != "raw" {
		t.Errorf("Expected DefaultFormat=raw, got %s", cfg.Output.DefaultFormat)
	}
	if cfg.Output.IntelHexFill != 0xff {
		t.Errorf("Expected IntelHexFill=0xff, got %#x", cfg.Output.IntelHexFill)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "casm" && path != "config.toml" {
			t.Errorf("Expected path in casm directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Assembler.DefaultCPU = "6502"
	cfg.Assembler.MaxPasses = 4
	cfg.Output.DefaultFormat = "intelhex"
	cfg.AddressSpace["6502"] = 0x8000

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Assembler.DefaultCPU != "6502" {
		t.Errorf("Expected DefaultCPU=6502, got %s", loaded.Assembler.DefaultCPU)
	}
	if loaded.Assembler.MaxPasses != 4 {
		t.Errorf("Expected MaxPasses=4, got %d", loaded.Assembler.MaxPasses)
	}
	if loaded.Output.DefaultFormat != "intelhex" {
		t.Errorf("Expected DefaultFormat=intelhex, got %s", loaded.Output.DefaultFormat)
	}
	if loaded.AddressSpaceFor("6502", 0) != 0x8000 {
		t.Errorf("Expected overridden 6502 address space 0x8000, got %#x", loaded.AddressSpaceFor("6502", 0))
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.Assembler.DefaultCPU != "Z80" {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[assembler]
max_passes = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
