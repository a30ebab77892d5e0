package keyset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeKeyFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
}

func TestNewStore_NoSource(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	if !errors.Is(err, ErrNoSource) {
		t.Errorf("NewStore() error = %v, want ErrNoSource", err)
	}
}

func TestStore_LoadFromFile(t *testing.T) {
	key, _ := rsaJWK(t, "file-key")
	path := filepath.Join(t.TempDir(), "keys.json")
	writeKeyFile(t, path, jwksJSON(t, key))

	store, err := NewStore(StoreConfig{Source: NewFileSource(path)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// Before Load the snapshot is empty, not nil.
	if store.Current() == nil {
		t.Fatal("Current() = nil before Load")
	}
	if store.Current().Len() != 0 {
		t.Errorf("Current().Len() = %d before Load, want 0", store.Current().Len())
	}

	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := store.Current().Lookup("file-key"); !ok {
		t.Error("loaded set is missing file-key")
	}
}

func TestStore_RefreshReplacesWholesale(t *testing.T) {
	oldKey, _ := rsaJWK(t, "old")
	newKey, _ := ecJWK(t, "new")
	path := filepath.Join(t.TempDir(), "keys.json")
	writeKeyFile(t, path, jwksJSON(t, oldKey))

	store, err := NewStore(StoreConfig{Source: NewFileSource(path)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	writeKeyFile(t, path, jwksJSON(t, newKey))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	ks := store.Current()
	if _, ok := ks.Lookup("old"); ok {
		t.Error("rotated-out key still present; rotation must replace, not merge")
	}
	if _, ok := ks.Lookup("new"); !ok {
		t.Error("rotated-in key missing")
	}
}

func TestStore_RefreshFailureKeepsPriorSet(t *testing.T) {
	key, _ := rsaJWK(t, "stable")
	path := filepath.Join(t.TempDir(), "keys.json")
	writeKeyFile(t, path, jwksJSON(t, key))

	store, err := NewStore(StoreConfig{Source: NewFileSource(path)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("parse failure", func(t *testing.T) {
		writeKeyFile(t, path, []byte("not json at all"))
		if err := store.Refresh(context.Background()); err == nil {
			t.Error("Refresh() error = nil, want parse error")
		}
		if _, ok := store.Current().Lookup("stable"); !ok {
			t.Error("prior set lost after failed refresh")
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		if err := os.Remove(path); err != nil {
			t.Fatalf("remove key file: %v", err)
		}
		if err := store.Refresh(context.Background()); err == nil {
			t.Error("Refresh() error = nil, want fetch error")
		}
		if _, ok := store.Current().Lookup("stable"); !ok {
			t.Error("prior set lost after failed fetch")
		}
	})
}

func TestStore_HTTPSource(t *testing.T) {
	key, _ := rsaJWK(t, "http-key")
	doc := jwksJSON(t, key)

	var mu sync.Mutex
	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	defer server.Close()

	store, err := NewStore(StoreConfig{Source: NewHTTPSource(server.URL, nil)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := store.Current().Lookup("http-key"); !ok {
		t.Error("loaded set is missing http-key")
	}

	mu.Lock()
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}
	mu.Unlock()
}

func TestStore_HTTPSourceBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	store, err := NewStore(StoreConfig{Source: NewHTTPSource(server.URL, nil)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err == nil {
		t.Error("Load() error = nil, want status error")
	}
}

func TestStore_Run(t *testing.T) {
	key1, _ := rsaJWK(t, "gen-1")
	key2, _ := rsaJWK(t, "gen-2")
	path := filepath.Join(t.TempDir(), "keys.json")
	writeKeyFile(t, path, jwksJSON(t, key1))

	store, err := NewStore(StoreConfig{
		Source:          NewFileSource(path),
		RefreshInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Run(ctx)
	}()

	writeKeyFile(t, path, jwksJSON(t, key2))

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := store.Current().Lookup("gen-2"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("rotated key never picked up by Run loop")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestStore_ConcurrentReaders(t *testing.T) {
	key, _ := rsaJWK(t, "concurrent")
	path := filepath.Join(t.TempDir(), "keys.json")
	writeKeyFile(t, path, jwksJSON(t, key))

	store, err := NewStore(StoreConfig{Source: NewFileSource(path)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ks := store.Current()
				// A snapshot is all-or-nothing: either the key is
				// there or the set was swapped out entirely.
				if ks.Len() != 0 {
					if _, ok := ks.Lookup("concurrent"); !ok {
						t.Error("snapshot interleaving observed")
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Refresh(context.Background())
			}
		}()
	}
	wg.Wait()
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) ([]byte, error) {
		return []byte(`{"keys":[]}`), nil
	})
	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Fetch() returned empty data")
	}
}
