package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/Iwan-Teague/Rustyfin/internal/scanner"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// OnChange is called after the debounce window when a library's files moved.
type OnChange func(libraryID uuid.UUID)

// Watcher monitors library roots and triggers rescans on filesystem changes.
// Events are debounced per library so a bulk copy results in one scan, not
// one per file.
type Watcher struct {
	libRepo  *repository.LibraryRepository
	callback OnChange
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	watched  map[string]uuid.UUID // directory path -> library id
	debounce map[uuid.UUID]*time.Timer
	stop     chan struct{}
}

func New(libRepo *repository.LibraryRepository, cb OnChange) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		libRepo:  libRepo,
		callback: cb,
		watcher:  fw,
		watched:  make(map[string]uuid.UUID),
		debounce: make(map[uuid.UUID]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() {
	go w.eventLoop()
	w.Refresh()
	log.Println("[watcher] filesystem watcher started")
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

// Refresh reconciles the watch list against the current library paths.
// Call after libraries are created, edited or deleted.
func (w *Watcher) Refresh() {
	libs, err := w.libRepo.List()
	if err != nil {
		log.Printf("[watcher] error loading libraries: %v", err)
		return
	}

	desired := make(map[string]uuid.UUID)
	for _, lib := range libs {
		paths, err := w.libRepo.GetPaths(lib.ID)
		if err != nil {
			log.Printf("[watcher] error loading paths for %s: %v", lib.Name, err)
			continue
		}
		for _, p := range paths {
			desired[p.Path] = lib.ID
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.watched {
		if _, ok := desired[p]; !ok {
			w.watcher.Remove(p)
			delete(w.watched, p)
		}
	}
	for p, libID := range desired {
		if _, ok := w.watched[p]; ok {
			continue
		}
		if err := w.addRecursive(p, libID); err != nil {
			log.Printf("[watcher] error adding %s: %v", p, err)
		}
	}

	log.Printf("[watcher] watching %d paths across %d libraries", len(w.watched), len(libs))
}

func (w *Watcher) addRecursive(root string, libID uuid.UUID) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && scanner.ShouldIgnoreDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return nil
		}
		w.watched[path] = libID
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}

	relevant := event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !relevant {
		return
	}

	// New directories join the watch set so nested content is seen.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if libID := w.resolveLibrary(event.Name); libID != uuid.Nil {
				w.mu.Lock()
				if !scanner.ShouldIgnoreDir(base) {
					w.watcher.Add(event.Name)
					w.watched[event.Name] = libID
				}
				w.mu.Unlock()
				w.scheduleScan(libID)
			}
			return
		}
	}

	if !scanner.IsVideoFile(event.Name) {
		return
	}
	libID := w.resolveLibrary(event.Name)
	if libID == uuid.Nil {
		return
	}
	w.scheduleScan(libID)
}

// scheduleScan (re)arms the per-library debounce timer.
func (w *Watcher) scheduleScan(libID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[libID]; ok {
		timer.Stop()
	}
	w.debounce[libID] = time.AfterFunc(2*time.Second, func() {
		w.mu.Lock()
		delete(w.debounce, libID)
		w.mu.Unlock()
		w.callback(libID)
	})
}

func (w *Watcher) resolveLibrary(path string) uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if libID, ok := w.watched[dir]; ok {
			return libID
		}
		dir = filepath.Dir(dir)
	}
	return uuid.Nil
}
