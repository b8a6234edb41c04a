package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solverparams/docsearch-mcp/internal/config"
	"github.com/solverparams/docsearch-mcp/internal/fulltext"
	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

func TestInitialize_FromPath(t *testing.T) {
	d := newTestDocSearch(t, nil)

	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	snap := d.current.Load()
	if snap == nil {
		t.Fatal("Expected active snapshot after Initialize")
	}
	if snap.index.Len() != 5 {
		t.Errorf("Expected 5 records, got %d", snap.index.Len())
	}
	if snap.source != d.cfg.Source.Path {
		t.Errorf("Expected source %s, got %s", d.cfg.Source.Path, snap.source)
	}
	count, err := snap.fulltext.DocCount()
	if err != nil || count != 5 {
		t.Errorf("Expected 5 full-text documents, got %d (%v)", count, err)
	}

	// Second call is a no-op
	if err := d.Initialize(); err != nil {
		t.Fatalf("second Initialize() error: %v", err)
	}
	if d.current.Load() != snap {
		t.Error("Initialize should not replace an active snapshot")
	}
}

func TestInitialize_EmbeddedFallback(t *testing.T) {
	d := newTestDocSearch(t, func(cfg *config.Config) { cfg.Source.Path = "" })

	mock := newMockDataProvider()
	mock.AddFile(embeddedIndexFile, []byte(smallIndex))
	d.WithDataProvider(mock)

	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	snap := d.current.Load()
	if snap.source != "embedded" {
		t.Errorf("Expected embedded source, got %s", snap.source)
	}
	if snap.index.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", snap.index.Len())
	}
}

func TestEmbeddedDataProvider_ShipsValidIndex(t *testing.T) {
	data, err := NewEmbeddedDataProvider().ReadFile(embeddedIndexFile)
	if err != nil {
		t.Fatalf("Embedded index missing: %v", err)
	}
	records, err := searchindex.LoadBytes(data)
	if err != nil {
		t.Fatalf("Embedded index does not parse: %v", err)
	}
	if len(records) == 0 {
		t.Error("Embedded index has no records")
	}
}

func TestInitialize_MissingSource(t *testing.T) {
	d := newTestDocSearch(t, func(cfg *config.Config) {
		cfg.Source.Path = filepath.Join(t.TempDir(), "missing.js")
	})

	if err := d.Initialize(); err == nil {
		t.Fatal("Expected error for missing source file")
	}
	if d.current.Load() != nil {
		t.Error("No snapshot should be active after a failed load")
	}
}

func TestInitialize_ConcurrentFirstUse(t *testing.T) {
	d := newTestDocSearch(t, nil)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, out, err := d.SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "domain"})
			if err != nil {
				errs <- err
				return
			}
			if out.TotalHits != 2 {
				errs <- fmt.Errorf("expected 2 hits, got %d", out.TotalHits)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestReload_SwapsSnapshot(t *testing.T) {
	d := newTestDocSearch(t, nil)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	old := d.current.Load()

	if err := os.WriteFile(d.cfg.Source.Path, []byte(smallIndex), 0644); err != nil {
		t.Fatalf("Failed to rewrite index: %v", err)
	}

	n, err := d.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 records after reload, got %d", n)
	}
	if d.current.Load() == old {
		t.Error("Expected a new snapshot after reload")
	}

	// Old full-text index is closed once in-flight searches drain
	if !waitFor(t, 2*time.Second, func() bool {
		_, err := old.fulltext.DocCount()
		return err != nil
	}) {
		t.Error("Expected old full-text index to be closed")
	}
}

func TestReload_KeepsSnapshotOnError(t *testing.T) {
	d := newTestDocSearch(t, nil)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	old := d.current.Load()

	os.WriteFile(d.cfg.Source.Path, []byte(`{"docs": [{"title": 1}]}`), 0644)

	_, err := d.Reload(context.Background())
	var parseErr *searchindex.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError from reload, got %v", err)
	}
	if d.current.Load() != old {
		t.Error("Failed reload must keep the previous snapshot")
	}
}

func TestClose_StopsSearches(t *testing.T) {
	d := newTestDocSearch(t, nil)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Second Close() should be a no-op, got %v", err)
	}

	_, _, err := d.SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "domain"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized after Close, got %v", err)
	}
	if _, err := d.Reload(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized from Reload after Close, got %v", err)
	}
}

// indexServer serves body and counts requests
func indexServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRefresh_FromURL(t *testing.T) {
	srv, hits := indexServer(t, http.StatusOK, sampleIndex)
	d := newTestDocSearch(t, func(cfg *config.Config) {
		cfg.Source.Path = ""
		cfg.Source.URL = srv.URL + "/search_index.js"
	})

	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 download on first load, got %d", hits.Load())
	}
	if src := d.current.Load().source; src != d.cfg.Source.URL {
		t.Errorf("Expected source %s, got %s", d.cfg.Source.URL, src)
	}
	if _, err := os.Stat(filepath.Join(d.dataDir, cacheMetaFile)); err != nil {
		t.Errorf("Expected cache metadata after download: %v", err)
	}

	updated, err := d.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if updated || hits.Load() != 1 {
		t.Errorf("Fresh cache should skip refresh (updated=%v, downloads=%d)", updated, hits.Load())
	}

	updated, err = d.Refresh(context.Background(), true)
	if err != nil {
		t.Fatalf("forced Refresh() error: %v", err)
	}
	if !updated || hits.Load() != 2 {
		t.Errorf("Forced refresh should download again (updated=%v, downloads=%d)", updated, hits.Load())
	}
}

func TestRefresh_StaleCacheDownloads(t *testing.T) {
	srv, hits := indexServer(t, http.StatusOK, sampleIndex)
	d := newTestDocSearch(t, func(cfg *config.Config) {
		cfg.Source.Path = ""
		cfg.Source.URL = srv.URL
	})
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	old := time.Now().Add(-30 * 24 * time.Hour)
	os.Chtimes(filepath.Join(d.dataDir, cacheMetaFile), old, old)

	updated, err := d.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if !updated || hits.Load() != 2 {
		t.Errorf("Stale cache should trigger download (updated=%v, downloads=%d)", updated, hits.Load())
	}
}

func TestRefresh_RejectsInvalidDownload(t *testing.T) {
	srv, _ := indexServer(t, http.StatusOK, "<html>not an index</html>")
	d := newTestDocSearch(t, func(cfg *config.Config) {
		cfg.Source.Path = ""
		cfg.Source.URL = srv.URL
	})
	mock := newMockDataProvider()
	mock.AddFile(embeddedIndexFile, []byte(smallIndex))
	d.WithDataProvider(mock)

	// First load falls back to the embedded copy
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if src := d.current.Load().source; src != "embedded" {
		t.Errorf("Expected embedded fallback, got %s", src)
	}
	if _, err := os.Stat(filepath.Join(d.dataDir, downloadedFile)); !os.IsNotExist(err) {
		t.Error("Rejected download must not be written to disk")
	}

	if _, err := d.Refresh(context.Background(), true); err == nil {
		t.Error("Expected refresh to fail for an invalid download")
	}
}

func TestRefresh_HTTPError(t *testing.T) {
	srv, _ := indexServer(t, http.StatusInternalServerError, "boom")
	d := newTestDocSearch(t, func(cfg *config.Config) {
		cfg.Source.Path = ""
		cfg.Source.URL = srv.URL
	})

	if _, err := d.Refresh(context.Background(), true); err == nil {
		t.Error("Expected refresh to fail on HTTP 500")
	}
}

func TestRefresh_Embedded(t *testing.T) {
	d := newTestDocSearch(t, func(cfg *config.Config) { cfg.Source.Path = "" })
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	updated, err := d.Refresh(context.Background(), false)
	if err != nil || updated {
		t.Errorf("Unforced refresh of embedded data should do nothing (updated=%v, err=%v)", updated, err)
	}
	updated, err = d.Refresh(context.Background(), true)
	if err != nil || !updated {
		t.Errorf("Forced refresh should reload (updated=%v, err=%v)", updated, err)
	}
}

func TestQueryCache(t *testing.T) {
	d := newTestDocSearch(t, nil)
	ctx := context.Background()

	d.SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "domain"})
	d.SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "DOMAIN"})
	d.SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "domain", Category: "method"})

	snap := d.current.Load()
	if snap.cache == nil {
		t.Fatal("Expected query cache to be enabled")
	}
	if snap.cache.Len() != 2 {
		t.Errorf("Expected 2 cached queries, got %d", snap.cache.Len())
	}
}

func TestQueryCache_Disabled(t *testing.T) {
	d := newTestDocSearch(t, func(cfg *config.Config) { cfg.Search.CacheSize = 0 })

	_, out, err := d.SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "domain"})
	if err != nil {
		t.Fatalf("SearchDocumentation() error: %v", err)
	}
	if out.TotalHits != 2 {
		t.Errorf("Expected 2 hits, got %d", out.TotalHits)
	}
	if d.current.Load().cache != nil {
		t.Error("Expected no cache when cache_size is 0")
	}
}

// --- Snapshot holder tests ---
// These verify the atomic swap and in-flight tracking with mock indexes

func TestSnapshotConcurrentReads(t *testing.T) {
	d := &DocSearch{}
	d.current.Store(&snapshot{fulltext: newMockIndex(1), index: searchindex.NewIndex(nil)})

	const numReaders = 50
	errChan := make(chan error, numReaders)
	var wg sync.WaitGroup

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			snap, release, err := d.acquire()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: %v", id, err)
				return
			}
			defer release()

			count, err := snap.fulltext.DocCount()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: DocCount failed: %v", id, err)
				return
			}
			if count != 100 {
				errChan <- fmt.Errorf("goroutine %d: expected 100, got %d", id, count)
			}
		}(i)
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		t.Error(err)
	}

	// Should return immediately once every release ran
	d.wg.Wait()
}

func TestSnapshotAtomicSwap(t *testing.T) {
	snap1 := &snapshot{fulltext: newMockIndex(1)}
	snap2 := &snapshot{fulltext: newMockIndex(2)}

	d := &DocSearch{}
	d.current.Store(snap1)

	if old := d.current.Swap(snap2); old != snap1 {
		t.Error("Swap should return the previous snapshot")
	}
	if d.current.Load() != snap2 {
		t.Error("Expected second snapshot after swap")
	}
}

func TestRetire_WaitsForInFlightSearches(t *testing.T) {
	d := &DocSearch{}
	mock := newMockIndex(1)
	old := &snapshot{fulltext: mock}

	// Simulate a search still holding the old snapshot
	d.wg.Add(1)
	done := make(chan struct{})
	go func() {
		d.retire(old)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if mock.closed.Load() {
		t.Fatal("Old index closed while a search was in flight")
	}

	d.wg.Done()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retire did not finish after searches drained")
	}
	if !mock.closed.Load() {
		t.Error("Expected old index to be closed")
	}
}

func TestSnapshotConcurrentSwapAndRead(t *testing.T) {
	d := &DocSearch{}
	d.current.Store(&snapshot{fulltext: newMockIndex(0)})

	const numReaders = 20
	const iterations = 5
	errChan := make(chan error, numReaders*iterations)
	var wg sync.WaitGroup

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				snap, release, err := d.acquire()
				if err != nil {
					errChan <- fmt.Errorf("reader %d iteration %d: %v", id, j, err)
					return
				}
				_, err = snap.fulltext.DocCount()
				release()
				if err != nil {
					errChan <- fmt.Errorf("reader %d iteration %d: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	// Swapper keeps old snapshots open, as retire would until readers drain
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			d.current.Swap(&snapshot{fulltext: newMockIndex(i + 1)})
		}
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		t.Error(err)
	}
}

// Compile-time check that the mock satisfies the full-text interface
var _ fulltext.Index = (*mockIndex)(nil)
