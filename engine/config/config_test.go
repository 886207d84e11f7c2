package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/relic/engine/config"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
archive_path = "/captures/game"
num_threads = 8
loop = 3
pipeline_cache = true
on_disk_pipeline_cache = "/captures/game.cache"
filter_graphics = ["0x2", "16"]
filter_independent = true
watch = true
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/captures/game", cfg.ArchivePath)
	assert.Equal(t, 8, cfg.NumThreads)
	assert.Equal(t, 3, cfg.LoopCount)
	assert.True(t, cfg.PipelineCache)
	assert.Equal(t, "/captures/game.cache", cfg.OnDiskPipelineCachePath)
	assert.True(t, cfg.FilterIndependent)
	assert.True(t, cfg.Watch)

	hashes, err := cfg.ParseFilter(cfg.FilterGraphics)
	require.NoError(t, err)
	assert.Equal(t, []metadata.Hash{0x2, 0x10}, hashes)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`num_threads = "eight"`), 0o644))
	_, err = config.Load(path)
	assert.Error(t, err)

	cfg := &config.Config{}
	_, err = cfg.ParseFilter([]string{"zzz"})
	assert.Error(t, err)
}
