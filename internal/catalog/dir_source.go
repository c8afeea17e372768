package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/logfields"
)

const defaultDebounce = 200 * time.Millisecond

// DirSource serves checklists from *.yaml, *.yml and *.json files in a
// directory. A file holds one record or a list of records.
type DirSource struct {
	dir      string
	logger   *slog.Logger
	debounce time.Duration

	mu         sync.RWMutex
	checklists map[string]*domain.Checklist
}

func NewDirSource(dir string, logger *slog.Logger) (*DirSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DirSource{
		dir:        dir,
		logger:     logger,
		debounce:   defaultDebounce,
		checklists: make(map[string]*domain.Checklist),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DirSource) List(_ context.Context) ([]*domain.Checklist, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*domain.Checklist, 0, len(d.checklists))
	for _, c := range d.checklists {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *DirSource) Get(_ context.Context, id string) (*domain.Checklist, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.checklists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Reload re-reads every definition file. Invalid files are logged and
// skipped; the previous set is replaced only when the directory is readable.
func (d *DirSource) Reload() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read checklist directory: %w", err)
	}

	loaded := make(map[string]*domain.Checklist)
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())

		records, err := readRecords(path)
		if err != nil {
			d.logger.Warn("Skipping checklist file", logfields.Path(path), logfields.Error(err))
			continue
		}
		for _, rec := range records {
			def, err := rec.Definition()
			if err != nil {
				d.logger.Warn("Skipping invalid checklist", logfields.Path(path), logfields.Error(err))
				continue
			}
			if _, dup := loaded[def.ID]; dup {
				d.logger.Warn("Duplicate checklist id, keeping first", logfields.ChecklistID(def.ID), logfields.Path(path))
				continue
			}
			loaded[def.ID] = def
		}
	}

	d.mu.Lock()
	d.checklists = loaded
	d.mu.Unlock()

	d.logger.Debug("Checklist directory loaded", logfields.Path(d.dir), slog.Int("checklists", len(loaded)))
	return nil
}

// Watch reloads the directory whenever a definition file changes, until ctx
// is done. onReload, if set, is called after each reload.
func (d *DirSource) Watch(ctx context.Context, onReload func(err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", d.dir, err)
	}

	go d.watchLoop(ctx, watcher, onReload)
	return nil
}

func (d *DirSource) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onReload func(error)) {
	defer watcher.Close()

	var pending time.Time
	ticker := time.NewTicker(d.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("Checklist directory watch error", logfields.Error(err))

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < d.debounce {
				continue
			}
			pending = time.Time{}
			err := d.Reload()
			if err != nil {
				d.logger.Error("Checklist directory reload failed", logfields.Error(err))
			} else {
				d.logger.Info("Checklist directory reloaded", logfields.Path(d.dir))
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// readRecords decodes a file holding either one record or a list.
func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(root.Content) == 0 {
		return nil, errors.New("empty definition file")
	}

	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var records []Record
		if err := doc.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		return records, nil
	}

	var rec Record
	if err := doc.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return []Record{rec}, nil
}
