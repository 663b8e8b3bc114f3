package domain

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath is the standard location for the engine's config file.
const DefaultConfigPath = "/etc/eventwatch/config.yml"

// FileConfig represents the YAML configuration file structure.
// Values set in the config file replace the corresponding CLI flag and
// environment variable values; fields left out of the file do not.
type FileConfig struct {
	// Server settings
	Port     *int    `yaml:"port,omitempty"`
	LogLevel *string `yaml:"log_level,omitempty"`
	LogsDir  *string `yaml:"logs_dir,omitempty"`
	Debug    *bool   `yaml:"debug,omitempty"`

	// CORS
	CORSOrigin *string `yaml:"cors_origin,omitempty"`

	// Engine tuning
	IngestQueueCapacity   *int      `yaml:"ingest_queue_capacity,omitempty"`
	AnalyzerQueueCapacity *int      `yaml:"analyzer_queue_capacity,omitempty"`
	ShutdownGraceSeconds  *int      `yaml:"shutdown_grace_seconds,omitempty"`
	RuleStoragePath       *string   `yaml:"rule_storage_path,omitempty"`
	ArchivePath           *string   `yaml:"archive_path,omitempty"`
	AlarmChannels         *[]string `yaml:"alarm_channels,omitempty"`
}

// LoadConfigFile reads and parses a YAML config file.
// Returns nil without error if the file does not exist.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a trusted config file path, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}
