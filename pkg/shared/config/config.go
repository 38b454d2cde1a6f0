package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config is the root of the optional application configuration file.
type Config struct {
	Logger     Logger     `yaml:"logger"`
	HTTPClient HTTPClient `yaml:"http_client"`
	Codespell  Codespell  `yaml:"codespell"`
}

// Logger holds logging configuration settings.
type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     bool   `yaml:"disable_time"`
	JSONFormat      bool   `yaml:"json_format"`
	IncludeLocation bool   `yaml:"include_location"`
}

// HTTPClient holds configuration settings for the REST client.
type HTTPClient struct {
	Debug            bool             `yaml:"debug"`
	RetryCount       int              `yaml:"retry_count"`
	RetryWaitTime    string           `yaml:"retry_wait_time"`
	RetryMaxWaitTime string           `yaml:"retry_max_wait_time"`
	Timeout          string           `yaml:"timeout"`
	TLSClientConfig  *TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy            `yaml:"proxy"`
}

// TLSClientConfig holds TLS verification settings.
type TLSClientConfig struct {
	Verify bool `yaml:"verify"`
}

// Proxy holds outbound proxy settings.
type Proxy struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Codespell holds settings for the external spell-checking tool.
type Codespell struct {
	Binary     string `yaml:"binary"`
	ConfigFile string `yaml:"config_file"`
}

// ValidateConfigPath checks that the given path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes a YAML file into the provided destination.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig loads the application configuration from the given path.
// An empty path or a missing file yields a zero configuration so the task
// can run on defaults alone.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath == "" {
		return config, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	return config, nil
}
