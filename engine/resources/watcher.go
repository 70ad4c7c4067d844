package resources

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/maps"

	"github.com/spaghettifunk/ember/engine/core"
)

/**
 * @brief Watches the asset base directory recursively and marks imported
 * resources stale when their source changes on disk. Consumers poll
 * DirtyPaths; push notification stays out of scope.
 */
type SourceWatcher struct {
	mountpoint string
	base       string

	mu      sync.RWMutex
	sources map[string]ResourcePath
	dirty   map[string]ResourcePath

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewSourceWatcher(mountpoint, baseDir string) (*SourceWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SourceWatcher{
		mountpoint: mountpoint,
		base:       baseDir,
		sources:    make(map[string]ResourcePath),
		dirty:      make(map[string]ResourcePath),
		fsnotify:   fsWatch,
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching the base directory and all sub-directories, and
// indexes the sources already present.
func (sw *SourceWatcher) Start() error {
	if sw.isClosed {
		return errors.New("source watcher already closed")
	}
	go sw.start()
	return sw.watchRecursive(sw.base, false)
}

func (sw *SourceWatcher) Close() error {
	if sw.isClosed {
		return nil
	}
	sw.isClosed = true
	close(sw.done)
	return nil
}

// Sources returns the indexed source paths.
func (sw *SourceWatcher) Sources() []ResourcePath {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return maps.Values(sw.sources)
}

// DirtyPaths drains the set of sources modified since the last call.
func (sw *SourceWatcher) DirtyPaths() []ResourcePath {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	out := maps.Values(sw.dirty)
	sw.dirty = make(map[string]ResourcePath)
	return out
}

func (sw *SourceWatcher) start() {
	for {
		select {
		case e := <-sw.fsnotify.Events:
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					sw.watchRecursive(e.Name, false)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.handleFileEvent(e.Name)
			}
			if e.Op&fsnotify.Remove != 0 {
				sw.removeSource(e.Name)
				sw.fsnotify.Remove(e.Name)
			}

		case e := <-sw.fsnotify.Errors:
			core.LogError("source watcher: %s", e.Error())

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and feeds every file into the index.
func (sw *SourceWatcher) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return sw.fsnotify.Remove(walkPath)
			}
			return sw.fsnotify.Add(walkPath)
		}
		sw.handleFileEvent(walkPath)
		return nil
	})
}

func (sw *SourceWatcher) resourcePathFor(osPath string) (ResourcePath, bool) {
	rel, err := filepath.Rel(sw.base, osPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return ResourcePath{}, false
	}
	return NewResourcePath(rel).WithMountpoint(sw.mountpoint), true
}

// A created or modified source lands in both the index and the dirty set.
// Side-cars and meta files are not sources themselves.
func (sw *SourceWatcher) handleFileEvent(osPath string) {
	if strings.HasSuffix(osPath, ".import") || strings.HasSuffix(osPath, ".meta") {
		return
	}
	rp, ok := sw.resourcePathFor(osPath)
	if !ok {
		return
	}

	sw.mu.Lock()
	key := rp.String()
	_, known := sw.sources[key]
	sw.sources[key] = rp
	if known {
		sw.dirty[key] = rp
	}
	sw.mu.Unlock()

	if known {
		core.EventFire(core.EVENT_CODE_RESOURCE_STALE, sw, core.EventContext{Path: key})
	}
}

func (sw *SourceWatcher) removeSource(osPath string) {
	rp, ok := sw.resourcePathFor(osPath)
	if !ok {
		return
	}

	sw.mu.Lock()
	key := rp.String()
	delete(sw.sources, key)
	delete(sw.dirty, key)
	sw.mu.Unlock()

	core.EventFire(core.EVENT_CODE_RESOURCE_SOURCE_REMOVED, sw, core.EventContext{Path: key})
}
