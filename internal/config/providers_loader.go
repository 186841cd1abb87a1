package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadProvidersFile loads and validates an providers configuration file using Koanf.
// Returns the parsed and validated ProvidersFile or an error.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Schema validation failure (unsupported version, missing required fields, duplicate names)
//
// This loader performs synchronous loading; ProvidersWatcher
// (providers_watcher.go) calls it again on file changes for hot reload.
func LoadProvidersFile(filepath string) (*ProvidersFile, error) {
	// Create new Koanf instance with dot delimiter
	k := koanf.New(".")

	// Load file using file provider with YAML parser
	if err := k.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load providers config from %q: %w", filepath, err)
	}

	// Unmarshal into ProvidersFile struct
	// Use UnmarshalWithConf to specify the yaml tag
	var config ProvidersFile
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse providers config from %q: %w", filepath, err)
	}

	// Validate schema version and structure
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("providers config validation failed for %q: %w", filepath, err)
	}

	return &config, nil
}
