package config

import (
	"fmt"
)

// ProvidersFile represents the top-level structure of the providers config file.
// This file defines provider instances with their configurations.
//
// Example YAML structure:
//
//	schema_version: v1
//	instances:
//	  - name: stats-oecd
//	    type: oecd_stats
//	    enabled: true
//	    config:
//	      base_url: "https://stats.oecd.org/sdmx-json"
//	  - name: stats-eurostat
//	    type: eurostat
//	    enabled: false
//	    config:
//	      base_url: "https://ec.europa.eu/eurostat/api"
type ProvidersFile struct {
	// SchemaVersion is the explicit config schema version (e.g., "v1")
	// Used for in-memory migration when loading older config formats
	SchemaVersion string `yaml:"schema_version"`

	// Instances is the list of provider instances to manage
	Instances []ProviderInstanceConfig `yaml:"instances"`
}

// ProviderInstanceConfig represents a single provider instance configuration.
// Each instance has a unique name and type-specific configuration.
type ProviderInstanceConfig struct {
	// Name is the unique instance name (e.g., "stats-oecd")
	// Must be unique across all instances in the file
	Name string `yaml:"name"`

	// Type is the provider type (e.g., "oecd_stats")
	// Multiple instances can have the same Type with different Names
	Type string `yaml:"type"`

	// Enabled indicates whether this instance should be started
	// Disabled instances are skipped during initialization
	Enabled bool `yaml:"enabled"`

	// Config holds instance-specific configuration as a map
	// Each provider type interprets this differently
	// (e.g., the oecd_stats provider expects {"base_url": "https://stats.oecd.org"})
	Config map[string]interface{} `yaml:"config"`
}

// Validate checks that the ProvidersFile is valid.
// Returns descriptive errors for validation failures.
func (f *ProvidersFile) Validate() error {
	// Check schema version
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	// Track instance names for uniqueness check
	seenNames := make(map[string]bool)

	for i, instance := range f.Instances {
		// Check required fields
		if instance.Name == "" {
			return NewConfigError(fmt.Sprintf(
				"instance[%d]: name is required",
				i,
			))
		}

		if instance.Type == "" {
			return NewConfigError(fmt.Sprintf(
				"instance[%d] (%s): type is required",
				i, instance.Name,
			))
		}

		// Check for duplicate names
		if seenNames[instance.Name] {
			return NewConfigError(fmt.Sprintf(
				"instance[%d]: duplicate instance name %q",
				i, instance.Name,
			))
		}
		seenNames[instance.Name] = true
	}

	return nil
}
