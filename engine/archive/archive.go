package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

/**
 * @brief A content-addressed on-disk store of serialized resource records.
 * One subdirectory per category, one `<hash>.json` file per record, the file
 * name being the 16-digit hex form of the content hash.
 */
type Archive struct {
	root     string
	hashes   map[metadata.ResourceType][]metadata.Hash
	prepared bool
}

func Open(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive %s is not a directory", path)
	}
	return &Archive{
		root:   path,
		hashes: make(map[metadata.ResourceType][]metadata.Hash),
	}, nil
}

// Prepare scans every category directory into a sorted hash list. A missing
// category directory simply yields an empty list.
func (a *Archive) Prepare() error {
	for _, kind := range metadata.PlaybackOrder {
		dir := filepath.Join(a.root, kind.DirName())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				a.hashes[kind] = nil
				continue
			}
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}

		hashes := make([]metadata.Hash, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			hash, ok := hashFromFileName(entry.Name())
			if !ok {
				core.LogWarn("ignoring foreign file in archive: %s", filepath.Join(dir, entry.Name()))
				continue
			}
			hashes = append(hashes, hash)
		}
		slices.Sort(hashes)
		a.hashes[kind] = hashes
	}
	a.prepared = true
	return nil
}

func (a *Archive) HashList(kind metadata.ResourceType) ([]metadata.Hash, error) {
	if !a.prepared {
		return nil, core.ErrArchiveNotReady
	}
	return a.hashes[kind], nil
}

func (a *Archive) ReadEntry(kind metadata.ResourceType, hash metadata.Hash) ([]byte, error) {
	blob, err := os.ReadFile(a.entryPath(kind, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, hash, core.ErrEntryNotFound)
		}
		return nil, err
	}
	return blob, nil
}

// TotalRecords is the record count across every category after Prepare.
func (a *Archive) TotalRecords() int {
	total := 0
	for _, hashes := range a.hashes {
		total += len(hashes)
	}
	return total
}

func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) entryPath(kind metadata.ResourceType, hash metadata.Hash) string {
	return filepath.Join(a.root, kind.DirName(), hash.String()+".json")
}

func hashFromFileName(name string) (metadata.Hash, bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found {
		return 0, false
	}
	v, err := strconv.ParseUint(base, 16, 64)
	if err != nil {
		return 0, false
	}
	return metadata.Hash(v), true
}
