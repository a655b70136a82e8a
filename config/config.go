// Package config handles knightcode.toml compiler configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const FileName = "knightcode.toml"

// Config is the contents of knightcode.toml. Missing values take the defaults of Default.
type Config struct {
	Output Output `toml:"output"`
	Log    Log    `toml:"log"`
	Dump   Dump   `toml:"dump"`

	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `toml:"-"`
}

type Output struct {
	// Dir is relative to the directory of the configuration file.
	Dir       string `toml:"dir"`
	Extension string `toml:"extension"`
}

type Log struct {
	Verbosity int `toml:"verbosity"`
	// File is empty for stderr.
	File string `toml:"file"`
}

type Dump struct {
	Enabled bool `toml:"enabled"`
}

func Default() *Config {
	return &Config{
		Output: Output{Dir: ".", Extension: "class"},
	}
}

// Load parses the configuration file at path. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	meta, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	// Defaults
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Extension == "" {
		c.Output.Extension = "class"
	}
	c.Output.Extension = strings.TrimPrefix(c.Output.Extension, ".")
	if c.Log.Verbosity < 0 {
		return nil, fmt.Errorf("%s: log.verbosity must not be negative", path)
	}

	if !filepath.IsAbs(c.Output.Dir) {
		c.Output.Dir = filepath.Join(filepath.Dir(path), c.Output.Dir)
	}
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(filepath.Dir(path), c.Log.File)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad loads knightcode.toml from dir, or returns the defaults when dir has none.
func FindAndLoad(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}
