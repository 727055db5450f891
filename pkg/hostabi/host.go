package hostabi

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/slipwayhq/slipway/pkg/permission"
	"github.com/slipwayhq/slipway/pkg/resilience"
)

// RunRequest is what a guest's host.run call passes to invoke a callout.
type RunRequest struct {
	Alias string
	Input []byte
}

// RunResult is what the callout's own run produced.
type RunResult struct {
	Output      []byte
	RunMetadata any // *execstate.RunMetadata, left untyped to avoid an import cycle
}

// Runner lets a Host invoke a callout without importing pkg/session
// directly (pkg/session imports pkg/hostabi to build each run's Host,
// so the dependency can't run the other way).
type Runner func(ctx context.Context, req RunRequest, chain permission.CallChain) (RunResult, error)

// Host is the per-run instance of the ABI op table, scoped to one
// component execution's call chain and permissions. A new Host is
// constructed for every run; it carries no state across runs.
type Host struct {
	Chain        permission.CallChain
	Logger       *slog.Logger
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	Env          func(string) (string, bool)
	RunCallout   Runner
	LoadFile     FileLoader
}

// FileLoader resolves a load_bin/load_text op's (alias, path) pair to
// the named file's raw bytes, alias being a key into the component's
// own `callouts` map — the same alias namespace `run` dispatches
// through — and path a relative path inside that callout component's
// package (§4.1's file-getter contract rejects absolute or
// parent-traversing paths).
type FileLoader func(alias, path string) ([]byte, error)

// New constructs a Host with sane defaults for any unset fields,
// grounded on resilience.WithTimeout's use as an external enforcement
// wrapper rather than trusting the guest's own timeout_ms (§4.9).
func New(chain permission.CallChain, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		Chain:        chain,
		Logger:       logger,
		HTTPClient:   http.DefaultClient,
		FetchTimeout: 30 * time.Second,
		Env:          os.LookupEnv,
	}
}

// Log tees a guest log line into the host log at the matching level
// (§4.9 "stdout/stderr are tee'd into the host log at info/error").
func (h *Host) Log(op Op, message string) {
	switch op {
	case OpLogDebug:
		h.Logger.Debug(message)
	case OpLogWarn:
		h.Logger.Warn(message)
	case OpLogError:
		h.Logger.Error(message)
	default:
		h.Logger.Info(message)
	}
}

// EnvLookup returns an environment variable's value after a permission
// check.
func (h *Host) EnvLookup(name string) (string, error) {
	if err := h.Chain.Check(permission.Operation{Class: permission.ClassEnv, Str: name}); err != nil {
		return "", err
	}
	v, _ := h.Env(name)
	return v, nil
}

// FetchBin performs the fetch_bin op: permission check, externally
// enforced timeout, and RequestError translation of any failure so the
// guest — not the sandbox — decides how to react (§7).
func (h *Host) FetchBin(ctx context.Context, url string, body []byte) ([]byte, error) {
	if err := h.Chain.Check(permission.Operation{Class: permission.ClassHTTP, URL: url}); err != nil {
		return nil, err
	}

	var out []byte
	err := resilience.WithTimeout(ctx, h.FetchTimeout, func(ctx context.Context) error {
		resp, reqErr := h.doFetch(ctx, url, body)
		if reqErr != nil {
			return reqErr
		}
		out = resp
		return nil
	})
	if err != nil {
		if _, ok := err.(*RequestError); ok {
			return nil, err
		}
		return nil, &RequestError{Message: err.Error()}
	}
	return out, nil
}

// FetchText is FetchBin with a UTF-8 string result, the JS backend's
// natural response type for a `fetch_text` call (§4.9).
func (h *Host) FetchText(ctx context.Context, url string, body string) (string, error) {
	b, err := h.FetchBin(ctx, url, []byte(body))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *Host) doFetch(ctx context.Context, url string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	method := http.MethodGet
	if body != nil {
		reqBody = bytes.NewReader(body)
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}
	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Message: fmt.Sprintf("non-2xx response: %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}
	return data, nil
}

// LoadBin performs the load_bin op: an intra-package read of a file
// belonging to the component named by alias. Unguarded (§4.9 "none
// (intra-package read)") — the alias is already constrained to the
// caller's own declared callouts, the same trust boundary `run` relies
// on, and the file getter itself rejects any path escaping the
// package.
func (h *Host) LoadBin(alias, path string) ([]byte, error) {
	if h.LoadFile == nil {
		return nil, &ComponentError{Message: "host.load_bin: no file loader configured"}
	}
	return h.LoadFile(alias, path)
}

// LoadText is LoadBin with a string result.
func (h *Host) LoadText(alias, path string) (string, error) {
	b, err := h.LoadBin(alias, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Font performs the font op: a permission-checked named font lookup.
// Resolution of the actual font bytes is left to the caller-supplied
// FontLoader since §4.9 does not mandate a storage format.
type FontLoader func(name string) ([]byte, error)

func (h *Host) Font(name string, load FontLoader) ([]byte, error) {
	if err := h.Chain.Check(permission.Operation{Class: permission.ClassFont, Str: name}); err != nil {
		return nil, err
	}
	return load(name)
}

// EncodeBin/DecodeBin are pure data-shape ops with no permission
// surface — the boundary-crossing format for "binary as byte array"
// vs. JS's Uint8Array is base64 on the wire (§9 "ABI symmetry").
func EncodeBin(data []byte) string { return base64.StdEncoding.EncodeToString(data) }

func DecodeBin(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// Run performs the run op: invoke a callout alias with the given
// input, inside a child call-chain frame intersected with this Host's
// own permissions (the caller is responsible for constructing that
// frame — see permission.CallChain.Enter — before dispatching here).
func (h *Host) Run(ctx context.Context, req RunRequest, childChain permission.CallChain) (RunResult, error) {
	if h.RunCallout == nil {
		return RunResult{}, &ComponentError{Message: "host.run: no callout runner configured"}
	}
	return h.RunCallout(ctx, req, childChain)
}
