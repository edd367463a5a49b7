package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tcm/internal/tcerr"
	"tcm/pkg/logging"
)

// Load reads a YAML config file over the defaults. A missing file yields the
// defaults unless required is set.
func Load(path string, required bool) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			logging.Debug("Config", "No config file found at %s, using defaults", path)
			return config, nil
		}
		return Config{}, tcerr.Configuration("cannot read config file %s: %v", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, tcerr.Configuration("error loading config from %s: %v", path, err)
	}

	logging.Info("Config", "Loaded configuration from %s", path)
	return config, nil
}

// Save writes c as YAML to path.
func Save(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
