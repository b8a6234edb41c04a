package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/solverparams/docsearch-mcp/internal/config"
	"github.com/solverparams/docsearch-mcp/internal/fulltext"
	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

const (
	embeddedIndexFile = "data/search_index.js"
	downloadedFile    = "docs/search_index.js"
	cacheMetaFile     = "docs/cache.meta"

	downloadTimeout = 30 * time.Second
)

// ErrNotInitialized is returned when a search runs after Close
var ErrNotInitialized = errors.New("documentation index not initialized")

// snapshot is one fully loaded generation of the search index.
// Snapshots are immutable; a refresh builds a new one and swaps it in.
type snapshot struct {
	index    *searchindex.Index
	fulltext fulltext.Index
	cache    *lru.Cache[string, []searchindex.Hit] // nil when caching is disabled
	stats    searchindex.LoadStats
	source   string
	loadedAt time.Time
}

// DocSearch serves lookups against the documentation search index
type DocSearch struct {
	cfg     *config.Config
	dataDir string
	data    DataProvider
	client  *http.Client
	lock    *dataDirLock

	// current holds the active snapshot (atomic access for lock-free reads)
	current atomic.Pointer[snapshot]

	// refreshMu prevents concurrent reloads
	// NOT used for searches - they are lock-free via atomic pointer
	refreshMu sync.Mutex

	// wg tracks in-flight searches for graceful cleanup of old snapshots
	wg sync.WaitGroup

	// initGroup collapses concurrent lazy initialisations into one load
	initGroup singleflight.Group

	watcher *sourceWatcher
	closed  atomic.Bool
}

// NewDocSearch creates the service. Nothing is loaded until Initialize or the
// first search.
func NewDocSearch(cfg *config.Config) *DocSearch {
	dataDir := cfg.ResolveDataDir()
	return &DocSearch{
		cfg:     cfg,
		dataDir: dataDir,
		data:    defaultDataProvider,
		client:  &http.Client{Timeout: downloadTimeout},
		lock:    newDataDirLock(dataDir),
	}
}

// Initialize loads the search index if no snapshot is active yet.
// Concurrent callers share a single load.
func (d *DocSearch) Initialize() error {
	if d.current.Load() != nil {
		return nil
	}
	_, err, _ := d.initGroup.Do("init", func() (interface{}, error) {
		if d.current.Load() != nil {
			return nil, nil
		}
		startTime := time.Now()
		log.Printf("Initializing documentation search...")

		snap, err := d.loadSnapshot(context.Background())
		if err != nil {
			return nil, err
		}
		d.current.Store(snap)
		log.Printf("✓ Documentation search initialized (%d records from %s) in %v",
			snap.index.Len(), snap.source, time.Since(startTime).Round(time.Millisecond))

		if d.cfg.Source.URL != "" && d.cfg.Source.Path == "" && d.needsRefresh() {
			log.Printf("ℹ️  Downloaded search index is older than %v. Consider using refresh_documentation_index to update.",
				d.cfg.Source.RefreshTTL)
		}
		return nil, nil
	})
	return err
}

// StartWatching reloads the index whenever the configured source file changes
func (d *DocSearch) StartWatching() error {
	if !d.cfg.Watch.Enabled || d.watcher != nil {
		return nil
	}
	path := d.watchPath()
	if path == "" {
		return nil
	}

	w, err := newSourceWatcher(path, time.Duration(d.cfg.Watch.Debounce), func() {
		if _, err := d.Reload(context.Background()); err != nil {
			log.Printf("Warning: Reload after source change failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	d.watcher = w
	log.Printf("✓ Watching %s for regenerated search index", path)
	return nil
}

// watchPath is the local file a reload would read, empty for embedded data
func (d *DocSearch) watchPath() string {
	switch {
	case d.cfg.Source.Path != "":
		return d.cfg.Source.Path
	case d.cfg.Source.URL != "":
		return filepath.Join(d.dataDir, downloadedFile)
	}
	return ""
}

// acquire returns the active snapshot, initialising on first use.
// The caller must invoke release when done with the snapshot.
func (d *DocSearch) acquire() (*snapshot, func(), error) {
	// Track in-flight searches for graceful cleanup (MUST be before Load)
	d.wg.Add(1)

	snap := d.current.Load()
	if snap == nil {
		if d.closed.Load() {
			d.wg.Done()
			return nil, nil, ErrNotInitialized
		}
		log.Printf("Doc index not initialized, initializing now...")
		if err := d.Initialize(); err != nil {
			d.wg.Done()
			return nil, nil, fmt.Errorf("failed to initialize documentation index: %w", err)
		}
		snap = d.current.Load()
		if snap == nil {
			d.wg.Done()
			return nil, nil, ErrNotInitialized
		}
	}
	return snap, d.wg.Done, nil
}

// Reload re-reads the source and swaps in a fresh snapshot.
// On failure the previous snapshot stays active.
func (d *DocSearch) Reload(ctx context.Context) (int, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if d.closed.Load() {
		return 0, ErrNotInitialized
	}

	startTime := time.Now()
	snap, err := d.loadSnapshot(ctx)
	if err != nil {
		return 0, err
	}

	old := d.current.Swap(snap)
	if old != nil {
		go d.retire(old)
	}

	log.Printf("✓ Index swap completed in %v, searches now using %d records from %s",
		time.Since(startTime).Round(time.Millisecond), snap.index.Len(), snap.source)
	return snap.index.Len(), nil
}

// retire closes an old snapshot once in-flight searches have drained
func (d *DocSearch) retire(old *snapshot) {
	log.Printf("Waiting for in-flight searches to complete before closing old index...")
	waitStart := time.Now()
	d.wg.Wait()

	if err := old.fulltext.Close(); err != nil {
		log.Printf("Warning: Error closing old index: %v", err)
		return
	}
	log.Printf("✓ Old index closed (waited %v)", time.Since(waitStart).Round(time.Millisecond))
}

// loadSnapshot resolves the source, parses it and builds every search structure
func (d *DocSearch) loadSnapshot(ctx context.Context) (*snapshot, error) {
	data, source, err := d.readSource(ctx)
	if err != nil {
		return nil, err
	}

	records, stats, err := searchindex.LoadWithStats(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}
	if stats.MissingFields > 0 || stats.UnknownCategories > 0 {
		log.Printf("Warning: %s has %d missing fields and %d unknown categories",
			source, stats.MissingFields, stats.UnknownCategories)
	}

	ft, err := fulltext.Build(records)
	if err != nil {
		return nil, fmt.Errorf("failed to build full-text index: %w", err)
	}

	snap := &snapshot{
		index:    searchindex.NewIndex(records),
		fulltext: ft,
		stats:    stats,
		source:   source,
		loadedAt: time.Now(),
	}
	if size := d.cfg.Search.CacheSize; size > 0 {
		cache, err := lru.New[string, []searchindex.Hit](size)
		if err != nil {
			ft.Close()
			return nil, fmt.Errorf("failed to create query cache: %w", err)
		}
		snap.cache = cache
	}
	return snap, nil
}

// readSource returns the raw index and a label naming where it came from.
// Priority: configured file > downloaded copy (fetched if missing) > embedded copy
func (d *DocSearch) readSource(ctx context.Context) ([]byte, string, error) {
	if path := d.cfg.Source.Path; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read search index: %w", err)
		}
		return data, path, nil
	}

	if d.cfg.Source.URL != "" {
		localPath := filepath.Join(d.dataDir, downloadedFile)
		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			if err := d.download(ctx); err != nil {
				log.Printf("Warning: Download failed, falling back to embedded index: %v", err)
				return d.readEmbedded()
			}
		}
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read downloaded search index: %w", err)
		}
		return data, d.cfg.Source.URL, nil
	}

	return d.readEmbedded()
}

func (d *DocSearch) readEmbedded() ([]byte, string, error) {
	data, err := d.data.ReadFile(embeddedIndexFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read embedded search index: %w", err)
	}
	return data, "embedded", nil
}

// needsRefresh checks if the downloaded copy is older than the refresh TTL
func (d *DocSearch) needsRefresh() bool {
	info, err := os.Stat(filepath.Join(d.dataDir, cacheMetaFile))
	if err != nil {
		return true // No cache, needs refresh
	}
	return time.Since(info.ModTime()) > time.Duration(d.cfg.Source.RefreshTTL)
}

// download fetches the index from the configured URL into the data directory.
// The body must parse before it replaces the previous copy.
func (d *DocSearch) download(ctx context.Context) error {
	if err := d.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}()

	url := d.cfg.Source.URL
	log.Printf("Downloading search index from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if _, err := searchindex.LoadBytes(body); err != nil {
		return fmt.Errorf("downloaded index rejected: %w", err)
	}

	docsPath := filepath.Join(d.dataDir, "docs")
	if err := os.MkdirAll(docsPath, 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	finalPath := filepath.Join(d.dataDir, downloadedFile)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, body, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	meta := fmt.Sprintf("last_update: %s\nsource: %s\n", time.Now().Format(time.RFC3339), url)
	if err := os.WriteFile(filepath.Join(d.dataDir, cacheMetaFile), []byte(meta), 0644); err != nil {
		log.Printf("Warning: Failed to write cache metadata: %v", err)
	}

	log.Printf("Search index downloaded successfully (%d bytes)", len(body))
	return nil
}

// Refresh updates the index from its source. Downloads happen only when a URL
// is configured and the local copy is stale or force is set. It reports
// whether a new snapshot was loaded.
func (d *DocSearch) Refresh(ctx context.Context, force bool) (bool, error) {
	switch {
	case d.cfg.Source.Path != "":
		// Local file: re-read unconditionally, it may have been regenerated
	case d.cfg.Source.URL != "":
		if !force && !d.needsRefresh() {
			log.Printf("Search index cache is fresh, skipping refresh")
			return false, nil
		}
		if err := d.download(ctx); err != nil {
			return false, fmt.Errorf("download failed: %w", err)
		}
	default:
		if !force {
			return false, nil
		}
	}

	if _, err := d.Reload(ctx); err != nil {
		return false, fmt.Errorf("reload failed: %w", err)
	}
	return true, nil
}

// cachedFind runs q without a limit, memoising per snapshot
func (s *snapshot) cachedFind(text string, category searchindex.Category) []searchindex.Hit {
	key := strings.ToLower(text) + "\x00" + string(category)
	if s.cache != nil {
		if hits, ok := s.cache.Get(key); ok {
			return hits
		}
	}
	hits := s.index.Find(searchindex.Query{Text: text, Category: category})
	if s.cache != nil {
		s.cache.Add(key, hits)
	}
	return hits
}

// Close stops the watcher and closes the active index
func (d *DocSearch) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	var closeErr error
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			log.Printf("Error closing source watcher: %v", err)
			closeErr = err
		}
	}

	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	// Atomically swap snapshot to nil (prevents new searches)
	snap := d.current.Swap(nil)
	if snap != nil {
		log.Printf("Waiting for in-flight searches to complete before closing...")
		d.wg.Wait()
		if err := snap.fulltext.Close(); err != nil {
			log.Printf("Error closing doc index: %v", err)
			if closeErr == nil {
				closeErr = err
			}
		} else {
			log.Printf("✓ Doc index closed successfully")
		}
	}

	if err := d.lock.Unlock(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}
