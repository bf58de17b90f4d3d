package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML file given with --config. Absent fields keep
// their defaults; flags set on the command line win over the file.
type fileConfig struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	IsHTTPS     *bool         `yaml:"is_https"`
	Path        string        `yaml:"path"`
	Format      string        `yaml:"format"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// decodeStrict decodes YAML from a reader and rejects any unknown fields.
func decodeStrict(r io.Reader, out any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig

	f, err := os.Open(path)
	if err != nil {
		return fc, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := decodeStrict(f, &fc); err != nil {
		return fc, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}
