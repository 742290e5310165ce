// Package config loads plasma settings.
// Priority: defaults < config file < environment < flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"plasma/sinks"
)

type Config struct {
	Dissect DissectConfig `yaml:"dissect"`
	Plugins PluginsConfig `yaml:"plugins"`
	Log     LogConfig     `yaml:"log"`
}

type DissectConfig struct {
	ParallelDissectors int    `yaml:"parallel_dissectors"`
	ParallelExtractors int    `yaml:"parallel_extractors"`
	FileFormat         string `yaml:"file_format"` // csv | jsonl
	Compression        string `yaml:"compression"` // gzip | zstd | lz4 | none
	Prefix             bool   `yaml:"prefix"`      // prefix outputs with the hostname
	Hostname           string `yaml:"hostname"`    // empty = local hostname
	Manifest           bool   `yaml:"manifest"`
}

type PluginsConfig struct {
	Directories []string `yaml:"directories"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

func Default() *Config {
	return &Config{
		Dissect: DissectConfig{
			ParallelDissectors: 1,
			ParallelExtractors: 4,
			FileFormat:         string(sinks.FormatCSV),
			Compression:        string(sinks.CompressionGzip),
			Manifest:           true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from PLASMA_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PLASMA_HOSTNAME"); v != "" {
		c.Dissect.Hostname = v
	}
	if v := getenv("PLASMA_COMPRESSION"); v != "" {
		c.Dissect.Compression = v
	}
	if v := getenv("PLASMA_FILE_FORMAT"); v != "" {
		c.Dissect.FileFormat = v
	}
	if v := getenv("PLASMA_PARALLEL_EXTRACTORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLASMA_PARALLEL_EXTRACTORS: %w", err)
		}
		c.Dissect.ParallelExtractors = n
	}
	if v := getenv("PLASMA_PLUGIN_DIRECTORIES"); v != "" {
		c.Plugins.Directories = strings.Split(v, string(os.PathListSeparator))
	}
	if v := getenv("PLASMA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Dissect.ParallelDissectors < 1 {
		errs = append(errs, fmt.Errorf("dissect.parallel_dissectors must be >= 1, got %d", c.Dissect.ParallelDissectors))
	}
	if c.Dissect.ParallelExtractors < 1 {
		errs = append(errs, fmt.Errorf("dissect.parallel_extractors must be >= 1, got %d", c.Dissect.ParallelExtractors))
	}
	if _, err := sinks.ParseFormat(c.Dissect.FileFormat); err != nil {
		errs = append(errs, fmt.Errorf("dissect.file_format: %w", err))
	}
	if _, err := sinks.ParseCompression(c.Dissect.Compression); err != nil {
		errs = append(errs, fmt.Errorf("dissect.compression: %w", err))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
