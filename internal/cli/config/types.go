// Package config provides configuration management for bqrun.
//
// Values are layered with koanf: built-in defaults, the bqrun.yaml file,
// BQRUN_* environment variables, settings pushed by an editor host and
// finally command line flags that were explicitly set. Query settings live
// under the "bigquery" section of the file.
package config

import "github.com/leapstack-labs/bqrun/internal/format"

// Config holds every setting a query invocation reads. A Config handed out by
// Manager is a snapshot and is never modified afterwards.
type Config struct {
	KeyFilename        string        `koanf:"keyFilename" yaml:"keyFilename"`
	ProjectID          string        `koanf:"projectId" yaml:"projectId"`
	UseLegacySQL       bool          `koanf:"useLegacySql" yaml:"useLegacySql"`
	Location           string        `koanf:"location" yaml:"location"`
	MaximumBytesBilled int64         `koanf:"maximumBytesBilled" yaml:"maximumBytesBilled,omitempty"`
	PreserveFocus      bool          `koanf:"preserveFocus" yaml:"preserveFocus"`
	OutputFormat       format.Format `koanf:"outputFormat" yaml:"outputFormat"`
	PrettyPrintJSON    bool          `koanf:"prettyPrintJSON" yaml:"prettyPrintJSON"`

	Verbose   bool   `koanf:"-" yaml:"-"`
	LogFormat string `koanf:"-" yaml:"-"`
}

// Section is the key prefix of the query settings.
const Section = "bigquery"

// Default configuration values.
const (
	DefaultLocation     = "US"
	DefaultOutputFormat = "json"
	DefaultLogFormat    = "text"
)

// File names searched for when no --config is given, in order.
var FileNames = []string{"bqrun.yaml", "bqrun.yml"}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Location:        DefaultLocation,
		PreserveFocus:   true,
		OutputFormat:    format.JSON,
		PrettyPrintJSON: true,
		LogFormat:       DefaultLogFormat,
	}
}

func defaultValues() map[string]any {
	return map[string]any{
		Section + ".keyFilename":     "",
		Section + ".projectId":       "",
		Section + ".useLegacySql":    false,
		Section + ".location":        DefaultLocation,
		Section + ".preserveFocus":   true,
		Section + ".outputFormat":    DefaultOutputFormat,
		Section + ".prettyPrintJSON": true,
		"verbose":                    false,
		"log_format":                 DefaultLogFormat,
	}
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"BQRUN_KEY_FILENAME":         Section + ".keyFilename",
	"BQRUN_PROJECT_ID":           Section + ".projectId",
	"BQRUN_USE_LEGACY_SQL":       Section + ".useLegacySql",
	"BQRUN_LOCATION":             Section + ".location",
	"BQRUN_MAXIMUM_BYTES_BILLED": Section + ".maximumBytesBilled",
	"BQRUN_PRESERVE_FOCUS":       Section + ".preserveFocus",
	"BQRUN_OUTPUT_FORMAT":        Section + ".outputFormat",
	"BQRUN_PRETTY_PRINT_JSON":    Section + ".prettyPrintJSON",
	"BQRUN_VERBOSE":              "verbose",
	"BQRUN_LOG_FORMAT":           "log_format",
}

// flagKeys maps command line flags to config keys. Flags not listed here
// never reach the config.
var flagKeys = map[string]string{
	"key-filename":         Section + ".keyFilename",
	"project-id":           Section + ".projectId",
	"use-legacy-sql":       Section + ".useLegacySql",
	"location":             Section + ".location",
	"maximum-bytes-billed": Section + ".maximumBytesBilled",
	"output":               Section + ".outputFormat",
	"pretty":               Section + ".prettyPrintJSON",
	"verbose":              "verbose",
	"log-format":           "log_format",
}
