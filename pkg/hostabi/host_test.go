package hostabi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slipwayhq/slipway/pkg/permission"
)

func TestHost_FetchBin_DeniedByPermission(t *testing.T) {
	chain := permission.Root("r", "c", permission.Set{})
	h := New(chain, nil)

	_, err := h.FetchBin(context.Background(), "https://example.com/x", nil)
	if err == nil {
		t.Fatal("expected default-deny on empty permission set")
	}
}

func TestHost_FetchBin_AllowedRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	chain := permission.Root("r", "c", permission.Set{
		Allow: []permission.Permission{{Class: permission.ClassHTTP, URLPattern: permission.URLPattern{Kind: permission.URLAny}}},
	})
	h := New(chain, nil)

	out, err := h.FetchBin(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Errorf("got %q", out)
	}
}

func TestHost_FetchBin_NonOKBecomesRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	chain := permission.Root("r", "c", permission.Set{
		Allow: []permission.Permission{{Class: permission.ClassHTTP, URLPattern: permission.URLPattern{Kind: permission.URLAny}}},
	})
	h := New(chain, nil)

	_, err := h.FetchBin(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected RequestError on 500 response")
	}
	if _, ok := err.(*RequestError); !ok {
		t.Errorf("expected *RequestError, got %T", err)
	}
}

func TestHost_EnvLookup_DeniedByDefault(t *testing.T) {
	chain := permission.Root("r", "c", permission.Set{})
	h := New(chain, nil)
	if _, err := h.EnvLookup("HOME"); err == nil {
		t.Fatal("expected default-deny")
	}
}

func TestHost_Run_NoRunnerConfigured(t *testing.T) {
	chain := permission.Root("r", "c", permission.Set{})
	h := New(chain, nil)
	if _, err := h.Run(context.Background(), RunRequest{Alias: "x"}, chain); err == nil {
		t.Fatal("expected ComponentError when no runner is configured")
	}
}

func TestHost_LoadBin_NoLoaderConfigured(t *testing.T) {
	chain := permission.Root("r", "c", permission.Set{})
	h := New(chain, nil)
	if _, err := h.LoadBin("dep", "data.json"); err == nil {
		t.Fatal("expected ComponentError when no file loader is configured")
	}
}

func TestHost_LoadBin_DispatchesAliasAndPath(t *testing.T) {
	chain := permission.Root("r", "c", permission.Set{})
	h := New(chain, nil)
	h.LoadFile = func(alias, path string) ([]byte, error) {
		return []byte(alias + ":" + path), nil
	}

	out, err := h.LoadBin("dep", "data.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "dep:data.json" {
		t.Errorf("got %q", out)
	}
}

func TestEncodeDecodeBin_RoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 255}
	enc := EncodeBin(data)
	dec, err := DecodeBin(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != string(data) {
		t.Errorf("got %v, want %v", dec, data)
	}
}
