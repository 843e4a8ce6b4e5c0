package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Sources describes where a load reads its layers from.
type Sources struct {
	// File is an explicit config file. When empty the file is searched for
	// upward from Dir.
	File string
	// Dir is where the upward search starts. Defaults to the working directory.
	Dir string
	// Settings are values pushed by an editor host. Nested maps and dotted
	// keys are both accepted.
	Settings map[string]any
	// Flags are command line flags; only flags that were explicitly set apply.
	Flags *pflag.FlagSet
}

// configExistsIn returns the config file inside dir, if any.
func configExistsIn(dir string) string {
	for _, name := range FileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// FindConfigFile searches upward from startDir for a bqrun config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindConfigFile(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// Load builds a Config from src. It returns the config file that was read,
// or "" when none was found.
// Precedence (highest to lowest): flags > host settings > env vars > config file > defaults
func Load(src Sources) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cfgFile, err := resolveFile(src)
	if err != nil {
		return nil, "", err
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables
	// Transform: BQRUN_PROJECT_ID -> bigquery.projectId
	if err := k.Load(env.Provider("BQRUN_", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Host settings
	if len(src.Settings) > 0 {
		if err := k.Load(confmap.Provider(src.Settings, "."), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load editor settings: %w", err)
		}
	}

	// 5. Flags (highest priority)
	if src.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(src.Flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, cfgFile, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgFile, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, cfgFile, nil
}

func resolveFile(src Sources) (string, error) {
	if src.File != "" {
		if _, err := os.Stat(src.File); err != nil {
			return "", fmt.Errorf("config file %s: %w", src.File, err)
		}
		return src.File, nil
	}
	dir := src.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", nil
		}
		dir = cwd
	}
	return FindConfigFile(dir), nil
}

// decode unmarshals the layered values. String values from the environment
// are converted weakly so "1000" and "true" decode into numbers and bools.
func decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf(Section, &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.Verbose = k.Bool("verbose")
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(k.String("log_format")))
	return &cfg, nil
}
