package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay gives editors and compilers time to finish writing a
// file before it is read. Writes within the window coalesce into one
// upload.
const settleDelay = 200 * time.Millisecond

// Watcher mirrors a directory of .wasm files into the host: files
// appearing or changing are uploaded, files disappearing are removed
// from the cache.
type Watcher struct {
	host   *Host
	fw     *fsnotify.Watcher
	logger *zap.Logger

	mu      sync.Mutex
	byPath  map[string]string // absolute path -> component id
	pending map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts mirroring dir. Existing .wasm files are uploaded before
// the watch loop starts, so the cache reflects the directory from the
// first moment.
func (h *Host) Watch(ctx context.Context, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		host:    h,
		fw:      fw,
		logger:  h.logger.Named("watcher"),
		byPath:  make(map[string]string),
		pending: make(map[string]*time.Timer),
		ctx:     wctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = fw.Close()
		cancel()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isComponentFile(entry.Name()) {
			continue
		}
		w.upload(filepath.Join(dir, entry.Name()))
	}

	go w.loop()
	w.logger.Info("watching component directory", zap.String("dir", dir))
	return w, nil
}

// Close stops the watch loop and waits for it to exit. Components
// already uploaded stay in the cache.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fw.Close()
	<-w.done

	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = map[string]*time.Timer{}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !isComponentFile(event.Name) {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				w.scheduleUpload(event.Name)
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.remove(event.Name)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// scheduleUpload (re)arms the settle timer for path.
func (w *Watcher) scheduleUpload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if w.ctx.Err() != nil {
			return
		}
		w.upload(path)
	})
}

func (w *Watcher) upload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading component file",
			zap.String("path", path), zap.Error(err))
		return
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err := w.host.Upload(w.ctx, data, name)
	if err != nil {
		w.logger.Warn("uploading component file",
			zap.String("path", path), zap.Error(err))
		return
	}

	w.mu.Lock()
	prev, hadPrev := w.byPath[path]
	w.byPath[path] = id
	w.mu.Unlock()

	if hadPrev && prev != id {
		// The file now holds different bytes; the old content is no
		// longer backed by anything on disk.
		if err := w.host.Remove(w.ctx, prev); err != nil {
			w.logger.Debug("removing replaced component",
				zap.String("component", prev), zap.Error(err))
		}
	}

	w.logger.Info("uploaded component from file",
		zap.String("path", path),
		zap.String("component", id))
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	id, ok := w.byPath[path]
	delete(w.byPath, path)
	w.mu.Unlock()

	if !ok {
		return
	}
	if err := w.host.Remove(w.ctx, id); err != nil {
		w.logger.Debug("removing watched component",
			zap.String("component", id), zap.Error(err))
		return
	}
	w.logger.Info("removed component for deleted file",
		zap.String("path", path),
		zap.String("component", id))
}

func isComponentFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wasm")
}
