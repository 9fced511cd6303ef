// Package appconfig loads the engine's own tunables and embeds the default
// script `key-mods init` writes out, following the split the teacher keeps
// between an on-disk config (config.go) and embedded defaults
// (config_defaults.go), and borrowing the TOML decoding and fsnotify hot
// reload idiom from the retrieval pack's witnessd config loader.
package appconfig

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed defaults/example.km
var defaultScript embed.FS

// Config holds the engine tunables read from config.toml.
type Config struct {
	DevicesFile   string `toml:"devices_file"`
	ScriptFile    string `toml:"script_file"`
	FuelLimit     int    `toml:"fuel_limit"`
	SleepMinimum  string `toml:"sleep_minimum"`
	UinputPath    string `toml:"uinput_path"`
	WindowPollMs  int    `toml:"window_poll_ms"`
}

// Default returns the engine's built-in tunables. FuelLimit counts executed
// statements per task before a forced yield (see interp.Interp.FuelLimit).
func Default() Config {
	return Config{
		FuelLimit:    1000,
		SleepMinimum: "1ms",
		UinputPath:   "/dev/uinput",
		WindowPollMs: 500,
	}
}

// SleepFloor parses SleepMinimum, falling back to 1ms on a malformed value.
func (c Config) SleepFloor() time.Duration {
	d, err := time.ParseDuration(c.SleepMinimum)
	if err != nil || d <= 0 {
		return time.Millisecond
	}
	return d
}

// ConfigDir mirrors the teacher's configDir(): $XDG_CONFIG_HOME/key-mods,
// falling back to ~/.config/key-mods.
func ConfigDir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, "key-mods")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "key-mods")
}

// Load reads config.toml from dir, applying Default() for any field TOML
// leaves at its zero value. A missing file is not an error — the defaults
// alone are a valid configuration.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("decode config.toml: %w", err)
	}
	if cfg.FuelLimit <= 0 {
		cfg.FuelLimit = Default().FuelLimit
	}
	return cfg, nil
}

// Init creates dir and extracts the embedded default script, skipping it if
// a script already exists (teacher's initConfig, generalized from a
// directory of YAML match files to the single .km entry point).
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	dst := filepath.Join(dir, "example.km")
	if _, err := os.Stat(dst); err == nil {
		fmt.Printf("  skip example.km (already exists)\n")
		return nil
	}
	data, err := defaultScript.ReadFile("defaults/example.km")
	if err != nil {
		return fmt.Errorf("read embedded default script: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	fmt.Printf("  created example.km\n")
	return nil
}
