package archive

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/**
 * @brief Watches an archive's category directories and reports records added
 * after Prepare. Records already present at prepare time are never reported,
 * and each new record is reported once even though the filesystem may emit
 * several events while it is written.
 */
type Watcher struct {
	archive  *Archive
	fsnotify *fsnotify.Watcher
	events   chan metadata.RecordRef
	done     chan struct{}

	mutex sync.Mutex
	seen  map[metadata.RecordRef]struct{}
}

func NewWatcher(a *Archive) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		archive:  a,
		fsnotify: fsWatch,
		events:   make(chan metadata.RecordRef, 64),
		done:     make(chan struct{}),
		seen:     make(map[metadata.RecordRef]struct{}),
	}

	// Everything the initial replay covered is old news.
	for _, kind := range metadata.PlaybackOrder {
		for _, hash := range a.hashes[kind] {
			w.seen[metadata.RecordRef{Kind: kind, Hash: hash}] = struct{}{}
		}
	}

	// Watch the root too, so category directories created later get picked up.
	if err := fsWatch.Add(a.root); err != nil {
		fsWatch.Close()
		return nil, err
	}
	for _, kind := range metadata.PlaybackOrder {
		dir := filepath.Join(a.root, kind.DirName())
		if err := fsWatch.Add(dir); err != nil {
			// The directory may simply not exist yet.
			core.LogDebug("not watching %s: %s", dir, err)
		}
	}

	go w.start()
	return w, nil
}

// Events yields one reference per record added after Prepare.
func (w *Watcher) Events() <-chan metadata.RecordRef {
	return w.events
}

func (w *Watcher) Close() error {
	close(w.done)
	return nil
}

func (w *Watcher) start() {
	for {
		select {
		case e := <-w.fsnotify.Events:
			if e.Op&fsnotify.Create != 0 {
				if kind, ok := w.categoryDir(e.Name); ok {
					if err := w.fsnotify.Add(e.Name); err == nil {
						core.LogDebug("watching new category directory %s (%s)", e.Name, kind)
						continue
					}
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ref, ok := w.recordRef(e.Name)
			if !ok {
				continue
			}
			w.mutex.Lock()
			if _, dup := w.seen[ref]; dup {
				w.mutex.Unlock()
				continue
			}
			w.seen[ref] = struct{}{}
			w.mutex.Unlock()
			w.events <- ref

		case e := <-w.fsnotify.Errors:
			core.LogError(e.Error())

		case <-w.done:
			w.fsnotify.Close()
			close(w.events)
			return
		}
	}
}

// categoryDir reports whether path is one of the archive's category
// directories.
func (w *Watcher) categoryDir(path string) (metadata.ResourceType, bool) {
	if filepath.Dir(path) != filepath.Clean(w.archive.root) {
		return 0, false
	}
	base := filepath.Base(path)
	for _, kind := range metadata.PlaybackOrder {
		if base == kind.DirName() {
			return kind, true
		}
	}
	return 0, false
}

// recordRef maps a file path inside a category directory to its record.
func (w *Watcher) recordRef(path string) (metadata.RecordRef, bool) {
	dir := filepath.Base(filepath.Dir(path))
	for _, kind := range metadata.PlaybackOrder {
		if dir != kind.DirName() {
			continue
		}
		if hash, ok := hashFromFileName(filepath.Base(path)); ok {
			return metadata.RecordRef{Kind: kind, Hash: hash}, true
		}
	}
	return metadata.RecordRef{}, false
}
