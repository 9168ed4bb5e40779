package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/ratecard"
)

// CatalogSource serves the current option catalog and reloads it when the
// catalog file changes on disk. A reload that fails keeps the previous
// catalog.
type CatalogSource struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	catalog ratecard.Catalog
}

// NewCatalogSource loads the catalog at path (the default catalog when path
// is empty).
func NewCatalogSource(path string, log *zap.Logger) (*CatalogSource, error) {
	catalog, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		log.Info("using the built-in option catalog")
	}
	return &CatalogSource{path: path, log: log, catalog: catalog}, nil
}

// Current returns the catalog in force. Callers must treat its slices as
// read-only.
func (s *CatalogSource) Current() ratecard.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Reload re-reads the catalog file.
func (s *CatalogSource) Reload() error {
	catalog, err := LoadCatalog(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	return nil
}

// Watch reloads the catalog on every write to its file until ctx is done.
// With no catalog file it just waits for ctx.
func (s *CatalogSource) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	defer w.Close()

	// Editors often replace files by rename, so watch the directory.
	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	s.log.Info("watching catalog", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("catalog reload failed, keeping previous catalog", zap.Error(err))
				continue
			}
			s.log.Info("catalog reloaded", zap.String("path", target))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
