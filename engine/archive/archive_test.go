package archive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/relic/engine/archive"
	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, root string, kind metadata.ResourceType, hash metadata.Hash, blob string) {
	t.Helper()
	dir := filepath.Join(root, kind.DirName())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash.String()+".json"), []byte(blob), 0o644))
}

func TestArchiveScanAndRead(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, metadata.ResourceTypeShaderModule, 0xBEEF, `{"code":""}`)
	writeRecord(t, root, metadata.ResourceTypeShaderModule, 0x0001, `{"code":""}`)
	writeRecord(t, root, metadata.ResourceTypeSampler, 0x42, `{"magFilter":1}`)
	// Foreign files are ignored, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(root, metadata.ResourceTypeSampler.DirName(), "README.txt"), []byte("x"), 0o644))

	arc, err := archive.Open(root)
	require.NoError(t, err)
	require.NoError(t, arc.Prepare())

	hashes, err := arc.HashList(metadata.ResourceTypeShaderModule)
	require.NoError(t, err)
	assert.Equal(t, []metadata.Hash{0x0001, 0xBEEF}, hashes, "hash lists are sorted")

	hashes, err = arc.HashList(metadata.ResourceTypeGraphicsPipeline)
	require.NoError(t, err)
	assert.Empty(t, hashes, "missing category directories are empty, not errors")

	blob, err := arc.ReadEntry(metadata.ResourceTypeSampler, 0x42)
	require.NoError(t, err)
	assert.JSONEq(t, `{"magFilter":1}`, string(blob))

	assert.Equal(t, 3, arc.TotalRecords())
}

func TestArchiveMissingEntry(t *testing.T) {
	root := t.TempDir()
	arc, err := archive.Open(root)
	require.NoError(t, err)
	require.NoError(t, arc.Prepare())

	_, err = arc.ReadEntry(metadata.ResourceTypeSampler, 0x99)
	assert.ErrorIs(t, err, core.ErrEntryNotFound)
}

func TestArchiveOpenFailures(t *testing.T) {
	_, err := archive.Open(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = archive.Open(file)
	assert.Error(t, err)
}

func TestArchiveHashListBeforePrepare(t *testing.T) {
	arc, err := archive.Open(t.TempDir())
	require.NoError(t, err)

	_, err = arc.HashList(metadata.ResourceTypeSampler)
	assert.ErrorIs(t, err, core.ErrArchiveNotReady)
}
