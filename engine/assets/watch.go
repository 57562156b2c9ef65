package assets

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/packages"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Watcher reports changed files under a root directory. Its goroutine only
// forwards slash-separated paths relative to root; consumers act on them
// from their own thread.
type Watcher struct {
	root     string
	fsnotify *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	wg       sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
}

func NewWatcher(root string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		fsnotify: fsWatch,
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}
	if err := w.watchRecursive(root); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Changes delivers changed paths until the watcher is closed.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := w.watchRecursive(e.Name); err != nil {
						core.LogWarn("watcher: %s", err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(w.root, e.Name)
			if err != nil {
				continue
			}
			select {
			case w.changes <- filepath.ToSlash(rel):
			case <-w.done:
				return
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("watcher: %s", err)

		case <-w.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsnotify.Add(walkPath)
	})
}

// Watch starts reporting changes under root, which must be the directory
// the manager's file system is rooted at.
func (m *Manager) Watch(root string) error {
	if m.watcher != nil {
		return errors.New("manager is already watching")
	}
	w, err := NewWatcher(root)
	if err != nil {
		return err
	}
	m.watcher = w
	core.LogInfo("watching %s for source changes", root)
	return nil
}

// PollChanges invalidates assets for every change reported since the last
// call. It never blocks and returns the number of files seen.
func (m *Manager) PollChanges() int {
	if m.watcher == nil {
		return 0
	}
	n := 0
	for {
		select {
		case file := <-m.watcher.Changes():
			n++
			m.Invalidate(file)
		default:
			return n
		}
	}
}

// Invalidate unloads every live asset built from file, and every material
// holding one of them, so the next request rebuilds it. It returns the ids
// that were unloaded.
func (m *Manager) Invalidate(file string) []int {
	stale := make(map[int]bool)
	for _, id := range m.Live() {
		if sourceMatches(m.assets[id].entry, file, m.opts.DefaultTarget) {
			stale[id] = true
		}
	}
	if len(stale) == 0 {
		return nil
	}
	for _, id := range m.Live() {
		a := m.assets[id]
		if a.material == nil || stale[id] {
			continue
		}
		_ = a.material.deps.Each(func(h *Handle) error {
			if stale[h.ID()] {
				stale[id] = true
			}
			return nil
		})
	}

	var ids []int
	// Materials first: unloading them may release the last texture handle.
	for _, pass := range []resources.AssetType{resources.AssetTypeMaterial, resources.AssetTypeTexture, resources.AssetTypeShader} {
		for _, id := range m.Live() {
			a := m.assets[id]
			if !stale[id] || a.entry.Type != pass {
				continue
			}
			_ = a.Process(core.Infinite, core.PhaseCancel)
			_ = a.Process(core.Infinite, core.PhaseUnload)
			ids = append(ids, id)
			m.events.Fire(core.EventAssetChanged, m, core.EventContext{AssetID: id, Path: a.entry.Path})
		}
	}
	core.LogInfo("%s changed: invalidated %d assets", file, len(ids))
	return ids
}

func sourceMatches(e *packages.Entry, file string, targets core.PhaseFlags) bool {
	if e.Cooked {
		return e.CookedPath() == file
	}
	if e.Type != resources.AssetTypeTexture {
		return false
	}
	src, ok := e.KeyValue("Source.File", targets)
	if !ok {
		return false
	}
	if src == file {
		return true
	}
	if !isBundle(src) || !isBundle(file) {
		return false
	}
	dir, base := path.Split(file)
	srcDir, srcBase := path.Split(src)
	return dir == srcDir && strings.TrimLeft(base[1:], "0123456789") == strings.TrimLeft(srcBase[1:], "0123456789")
}
