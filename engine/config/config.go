package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/**
 * @brief An optional replay profile loaded from TOML. Every field has a
 * matching CLI flag; flags take precedence over the profile.
 */
type Config struct {
	ArchivePath             string   `toml:"archive_path"`
	NumThreads              int      `toml:"num_threads"`
	LoopCount               int      `toml:"loop"`
	PipelineCache           bool     `toml:"pipeline_cache"`
	OnDiskPipelineCachePath string   `toml:"on_disk_pipeline_cache"`
	DeviceIndex             int      `toml:"device_index"`
	EnableValidation        bool     `toml:"enable_validation"`
	FilterGraphics          []string `toml:"filter_graphics"`
	FilterCompute           []string `toml:"filter_compute"`
	FilterIndependent       bool     `toml:"filter_independent"`
	Watch                   bool     `toml:"watch"`
	Debug                   bool     `toml:"debug"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseFilter converts the profile's hash literals.
func (c *Config) ParseFilter(literals []string) ([]metadata.Hash, error) {
	hashes := make([]metadata.Hash, 0, len(literals))
	for _, lit := range literals {
		h, err := metadata.ParseHash(lit)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}
