// Package watcher implements the filesystem watcher of spec 4.E: it
// keeps the markdown tree and JSONL snapshots converging toward the
// entity store by routing every filesystem change through the sync
// engine, and publishes an entity_sync event for each reconciliation.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/scdev/scd/internal/eventbus"
	scdsync "github.com/scdev/scd/internal/sync"
	"github.com/scdev/scd/internal/types"
)

// Store is the full set of store operations the watcher's handlers need,
// satisfied structurally by *store.Store.
type Store interface {
	scdsync.IssueStore
	scdsync.SpecStore
	scdsync.IssueFileStore
	scdsync.SpecFileStore
	ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error)
	ListSpecs(ctx context.Context, filter types.SpecFilter) ([]*types.Spec, error)
}

// Config points the watcher at one project's file layout, per spec 6's
// "Persisted state layout" (baseDir/specs, baseDir/issues, baseDir/*.jsonl).
type Config struct {
	BaseDir string
}

// Watcher observes specs/, issues/, specs.jsonl, and issues.jsonl under
// BaseDir and reconciles every change through the sync engine.
type Watcher struct {
	cfg   Config
	store Store
	bus   *eventbus.Bus
	fsw   *fsnotify.Watcher

	// globalMu is spec 4.E's "global FIFO mutex": every watcher-triggered
	// reconciliation acquires it before touching the store, so a write the
	// watcher itself causes (e.g. writing the losing side of a markdown
	// conflict) cannot re-enter while still in flight. A plain sync.Mutex
	// is not literally FIFO-ordered, but with a single watcher goroutine
	// processing events sequentially (see Run) there is never contention
	// for it to reorder.
	globalMu sync.Mutex

	inFlightMu sync.Mutex
	inFlight   map[string]bool

	mdCache         *HashCache
	issueJSONLCache scdsync.EntityHashCache
	specJSONLCache  scdsync.EntityHashCache

	now func() time.Time
}

// New builds a Watcher and starts fsnotify watches on the issues and
// specs directories and on BaseDir itself, whose watch covers the two
// JSONL files. It does not yet read any file; call Start to perform
// the startup cache-initialization and orphan sweep before Run.
func New(cfg Config, st Store, bus *eventbus.Bus) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	w := &Watcher{
		cfg:             cfg,
		store:           st,
		bus:             bus,
		fsw:             fsw,
		inFlight:        map[string]bool{},
		mdCache:         NewHashCache(),
		issueJSONLCache: scdsync.EntityHashCache{},
		specJSONLCache:  scdsync.EntityHashCache{},
		now:             time.Now,
	}

	for _, dir := range []string{w.issuesDir(), w.specsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("ensure directory %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}
	if err := fsw.Add(cfg.BaseDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch base directory %s: %w", cfg.BaseDir, err)
	}

	return w, nil
}

func (w *Watcher) issuesDir() string      { return filepath.Join(w.cfg.BaseDir, "issues") }
func (w *Watcher) specsDir() string       { return filepath.Join(w.cfg.BaseDir, "specs") }
func (w *Watcher) issuesJSONLPath() string { return filepath.Join(w.cfg.BaseDir, "issues.jsonl") }
func (w *Watcher) specsJSONLPath() string  { return filepath.Join(w.cfg.BaseDir, "specs.jsonl") }

// Start performs spec 4.E's startup sequence: seed the JSONL entity hash
// caches from current content (so the first post-launch event doesn't
// look like every entity changed), then sweep the markdown tree for
// orphans.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.seedJSONLCache(ctx); err != nil {
		return err
	}
	if err := w.sweepOrphans(ctx); err != nil {
		return err
	}
	return nil
}

func (w *Watcher) seedJSONLCache(ctx context.Context) error {
	existingIssues, err := w.store.ListIssues(ctx, types.IssueFilter{IncludeArchived: true})
	if err != nil {
		return fmt.Errorf("seed cache: list issues: %w", err)
	}
	if _, cache, err := scdsync.ReconcileIssuesJSONL(ctx, w.store, existingIssues, w.issuesJSONLPath(), scdsync.EntityHashCache{}); err == nil {
		w.issueJSONLCache = cache
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("seed issue jsonl cache: %w", err)
	}

	existingSpecs, err := w.store.ListSpecs(ctx, types.SpecFilter{IncludeArchived: true})
	if err != nil {
		return fmt.Errorf("seed cache: list specs: %w", err)
	}
	if _, cache, err := scdsync.ReconcileSpecsJSONL(ctx, w.store, existingSpecs, w.specsJSONLPath(), scdsync.EntityHashCache{}); err == nil {
		w.specJSONLCache = cache
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("seed spec jsonl cache: %w", err)
	}
	return nil
}

// sweepOrphans deletes any markdown file whose frontmatter id does not
// resolve to a live store entity, per spec 4.E.
func (w *Watcher) sweepOrphans(ctx context.Context) error {
	if err := w.sweepDir(w.issuesDir(), func(path string) error {
		raw, err := os.ReadFile(path) // #nosec G304 - path comes from our own directory listing
		if err != nil {
			return err
		}
		_, err = scdsync.SyncIssueFile(ctx, w.store, w.mdCache, path, raw, time.Now())
		return err
	}); err != nil {
		return err
	}
	return w.sweepDir(w.specsDir(), func(path string) error {
		raw, err := os.ReadFile(path) // #nosec G304 - path comes from our own directory listing
		if err != nil {
			return err
		}
		_, err = scdsync.SyncSpecFile(ctx, w.store, w.mdCache, path, raw, time.Now())
		return err
	})
}

func (w *Watcher) sweepDir(dir string, syncFile func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := syncFile(path); err != nil {
			return fmt.Errorf("sweep %s: %w", path, err)
		}
	}
	return nil
}

// Run drains fsnotify events until ctx is cancelled. It processes one
// event at a time, so handleEvent's own mutex acquisition never actually
// contends within a single Watcher.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		// Unlink is deliberately not authoritative (spec 4.E): a vanished
		// markdown file is logged, not treated as entity deletion.
		if event.Op&fsnotify.Remove != 0 {
			log.Printf("watcher: ignoring unlink of %s (filesystem is not authoritative for existence)", event.Name)
		}
		return
	}

	path := event.Name
	if !w.claim(path) {
		return
	}
	defer w.release(path)

	if err := waitForStable(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("watcher: stable-write wait failed for %s: %v", path, err)
		}
		return
	}

	w.globalMu.Lock()
	defer w.globalMu.Unlock()

	switch {
	case path == w.issuesJSONLPath():
		w.handleIssuesJSONL(ctx, path)
	case path == w.specsJSONLPath():
		w.handleSpecsJSONL(ctx, path)
	case filepath.Dir(path) == w.issuesDir() && strings.HasSuffix(path, ".md"):
		w.handleIssueMarkdown(ctx, path)
	case filepath.Dir(path) == w.specsDir() && strings.HasSuffix(path, ".md"):
		w.handleSpecMarkdown(ctx, path)
	}
}

// claim installs path into the in-process set, returning false if an
// event for path is already being handled (spec 4.E: "events for that
// path are dropped while the flag is set").
func (w *Watcher) claim(path string) bool {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	if w.inFlight[path] {
		return false
	}
	w.inFlight[path] = true
	return true
}

func (w *Watcher) release(path string) {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	delete(w.inFlight, path)
}

func (w *Watcher) handleIssueMarkdown(ctx context.Context, path string) {
	raw, err := os.ReadFile(path) // #nosec G304 - path comes from fsnotify on our own watched directory
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("watcher: read %s: %v", path, err)
		}
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	result, err := scdsync.SyncIssueFile(ctx, w.store, w.mdCache, path, raw, info.ModTime())
	if err != nil {
		log.Printf("watcher: sync issue file %s: %v", path, err)
		return
	}
	w.publish(ctx, types.EntityTypeIssue, SourceMarkdown, result, path)
}

func (w *Watcher) handleSpecMarkdown(ctx context.Context, path string) {
	raw, err := os.ReadFile(path) // #nosec G304 - path comes from fsnotify on our own watched directory
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("watcher: read %s: %v", path, err)
		}
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	result, err := scdsync.SyncSpecFile(ctx, w.store, w.mdCache, path, raw, info.ModTime())
	if err != nil {
		log.Printf("watcher: sync spec file %s: %v", path, err)
		return
	}
	w.publish(ctx, types.EntityTypeSpec, SourceMarkdown, result, path)
}

func (w *Watcher) handleIssuesJSONL(ctx context.Context, path string) {
	existing, err := w.store.ListIssues(ctx, types.IssueFilter{IncludeArchived: true})
	if err != nil {
		log.Printf("watcher: list issues: %v", err)
		return
	}
	result, cache, err := scdsync.ReconcileIssuesJSONL(ctx, w.store, existing, path, w.issueJSONLCache)
	if err != nil {
		log.Printf("watcher: reconcile issues jsonl: %v", err)
		return
	}
	w.issueJSONLCache = cache
	w.publishImportResult(ctx, types.EntityTypeIssue, SourceJSONL, result)
}

func (w *Watcher) handleSpecsJSONL(ctx context.Context, path string) {
	existing, err := w.store.ListSpecs(ctx, types.SpecFilter{IncludeArchived: true})
	if err != nil {
		log.Printf("watcher: list specs: %v", err)
		return
	}
	result, cache, err := scdsync.ReconcileSpecsJSONL(ctx, w.store, existing, path, w.specJSONLCache)
	if err != nil {
		log.Printf("watcher: reconcile specs jsonl: %v", err)
		return
	}
	w.specJSONLCache = cache
	w.publishImportResult(ctx, types.EntityTypeSpec, SourceJSONL, result)
}

// Event sources, per spec 4.E's entity_sync(..., source ∈ {markdown,
// jsonl, database}, ...).
const (
	SourceMarkdown = "markdown"
	SourceJSONL    = "jsonl"
	SourceDatabase = "database"
)

// entitySyncDetail is the free-form Detail payload carried on an
// entity_sync event, since types.Event has no dedicated "business id"
// field (it identifies entities by uuid, which this package doesn't
// always have on the markdown path — a freshly-orphaned file has none).
type entitySyncDetail struct {
	SyncAction string `json:"sync_action"`
	Path       string `json:"path,omitempty"`
}

func (w *Watcher) publish(ctx context.Context, kind types.EntityType, source string, result scdsync.MarkdownSyncResult, path string) {
	if w.bus == nil {
		return
	}
	detail, _ := json.Marshal(entitySyncDetail{SyncAction: string(result), Path: path})
	w.bus.Publish(ctx, types.Event{
		EntityType: kind,
		Action:     "entity_sync",
		Source:     source,
		Detail:     string(detail),
		CreatedAt:  w.now().UTC(),
	})
}

func (w *Watcher) publishImportResult(ctx context.Context, kind types.EntityType, source string, result *scdsync.ImportResult) {
	if w.bus == nil || result == nil {
		return
	}
	if result.Created == 0 && result.Updated == 0 {
		return
	}
	detail, _ := json.Marshal(struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}{result.Created, result.Updated})
	w.bus.Publish(ctx, types.Event{
		EntityType: kind,
		Action:     "entity_sync",
		Source:     source,
		Detail:     string(detail),
		CreatedAt:  w.now().UTC(),
	})
}

