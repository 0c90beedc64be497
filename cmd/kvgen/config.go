package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/kvgen/compiler/diag"
)

// DefaultConfigFile is read when present and no other config file is
// named.
const DefaultConfigFile = "kvgen.yaml"

// FileConfig holds the defaults read from a config file. Flags override
// them.
type FileConfig struct {
	// Schemas are the paths compiled when none are given.
	Schemas []string `yaml:"schemas"`
	// Mode is fail-fast or collect-all.
	Mode               string `yaml:"mode"`
	LenientAnnotations bool   `yaml:"lenientAnnotations"`
	// JoinDepth is nil when unset, as zero disables join expansion.
	JoinDepth *int   `yaml:"joinDepth"`
	Package   string `yaml:"package"`
	Out       string `yaml:"out"`
	Workers   int    `yaml:"workers"`
}

// LoadConfig reads the config file at path. A missing file yields an
// empty config if optional is set.
func LoadConfig(path string, optional bool) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML config, rejecting unknown keys.
func ParseConfig(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if _, err := diag.ParseMode(cfg.Mode); err != nil {
		return nil, err
	}
	if cfg.JoinDepth != nil && *cfg.JoinDepth < 0 {
		return nil, fmt.Errorf("joinDepth must be non-negative, got %d", *cfg.JoinDepth)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be non-negative, got %d", cfg.Workers)
	}
	return cfg, nil
}
