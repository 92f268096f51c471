package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed configuration for batch runs. Command-line
// flags override any value set here.
type Config struct {
	// Jobs caps concurrent analyses; zero means NumCPU.
	Jobs int `yaml:"jobs"`

	// Pretty selects indented JSON output.
	Pretty bool `yaml:"pretty"`

	// OutputDir, when set, writes one <chunk>.json per input instead of
	// streaming reports to stdout.
	OutputDir string `yaml:"output_dir,omitempty"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
