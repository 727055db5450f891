package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
)

func TestFetchToCache_RetriesTransientFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tar-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	l := New(Config{CacheDir: dir}, nil)

	path, err := l.fetchToCache(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchToCache: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tar-bytes" {
		t.Errorf("got %q", data)
	}
}

func TestFetchToCache_CacheHitSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("tar-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	l := New(Config{CacheDir: dir}, nil)

	if _, err := l.fetchToCache(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := l.fetchToCache(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 network call, got %d", calls)
	}
}

func TestFetchToCache_PermanentFailureReturnsLoadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(Config{CacheDir: t.TempDir()}, nil)

	_, err := l.fetchToCache(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	var loadErr *LoadError
	if !asLoadError(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if loadErr.Kind != FileLoadFailed {
		t.Errorf("kind = %v, want FileLoadFailed", loadErr.Kind)
	}
}

func asLoadError(err error, target **LoadError) bool {
	le, ok := err.(*LoadError)
	if !ok {
		return false
	}
	*target = le
	return true
}
