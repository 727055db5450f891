// Package jsrunner implements the JS sandbox backend (§4.10): launch a
// JS engine page, inject the ABI as a global slipway_host namespace
// object whose ops return promises, and invoke the guest entrypoint.
// Adapted from pkg/browser.Manager/Session: the lazy-launch
// machinery is reused verbatim in spirit, DOM actions replaced by ABI
// bindings and page.Eval used to drive the guest script instead of a
// page's document.
package jsrunner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/ysmood/gson"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// entrypointFile is the conventional name of a JS component's guest
// script within its package, sibling to slipway_component.json.
const entrypointFile = "entrypoint.js"

// Config mirrors the subset of pkg/browser.ManagerConfig relevant to a
// headless JS sandbox: no page pool, no incognito cookie isolation
// knobs, since every run gets its own throwaway page.
type Config struct {
	Headless       bool
	DefaultTimeout time.Duration
	BrowserBin     string
}

func (c *Config) defaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
}

// Runner lazily launches and connects to a single browser instance,
// reusing it across every guest script invocation (grounded on
// Manager.ensureBrowser's lazy-launch-once pattern).
type Runner struct {
	config  Config
	mu      sync.Mutex
	browser *rod.Browser
}

// New constructs a Runner with its backing browser launched lazily on
// first Run.
func New(config Config) *Runner {
	config.defaults()
	return &Runner{config: config}
}

// Close shuts down the backing browser, if one was launched.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}

func (r *Runner) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(r.config.Headless)
	if r.config.BrowserBin != "" {
		l = l.Bin(r.config.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("jsrunner: browser launch failed: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("jsrunner: browser connect failed: %w", err)
	}
	r.browser = browser
	return browser, nil
}

func (r *Runner) Supports(files loader.ComponentFiles) bool {
	return files.Exists(entrypointFile)
}

// Run opens a fresh incognito page, binds the host ABI, evaluates the
// guest script, and invokes its exported `run(input)` function, which
// must return (or resolve to) the output value as JSON (§4.10).
func (r *Runner) Run(ctx context.Context, component *rig.Component, files loader.ComponentFiles, input json.RawMessage, host *hostabi.Host) (json.RawMessage, execstate.RunMetadata, error) {
	var meta execstate.RunMetadata

	prepareStart := time.Now()
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "browser launch failed", Inner: err.Error()}
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "incognito context failed", Inner: err.Error()}
	}
	page, err := incognito.Page(rodEmptyPage())
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "page creation failed", Inner: err.Error()}
	}
	defer page.Close()

	script, err := files.GetText(entrypointFile)
	if err != nil {
		meta.PrepareComponent = time.Since(prepareStart)
		return nil, meta, &hostabi.ComponentError{Message: "read entrypoint failed", Inner: err.Error()}
	}
	meta.PrepareComponent = time.Since(prepareStart)

	bindStart := time.Now()
	stops, err := bindHost(page, host)
	meta.PrepareInput = time.Since(bindStart)
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "host binding failed", Inner: err.Error()}
	}
	defer func() {
		for _, stop := range stops {
			_ = stop()
		}
	}()

	if _, err := page.Timeout(r.config.DefaultTimeout).Eval(hostNamespaceScript + script); err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "guest script evaluation failed", Inner: err.Error()}
	}

	callStart := time.Now()
	result, err := page.Timeout(r.config.DefaultTimeout).Eval(
		`(input) => Promise.resolve(slipway_component.run(JSON.parse(input))).then(JSON.stringify)`,
		string(input),
	)
	meta.Call = time.Since(callStart)
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "guest run failed", Inner: err.Error()}
	}

	processStart := time.Now()
	out := json.RawMessage(result.Value.Str())
	var probe any
	if err := json.Unmarshal(out, &probe); err != nil {
		meta.ProcessOutput = time.Since(processStart)
		return nil, meta, &hostabi.ComponentError{Message: "guest produced invalid JSON output", Inner: err.Error()}
	}
	meta.ProcessOutput = time.Since(processStart)

	return out, meta, nil
}

func rodEmptyPage() string { return "about:blank" }

// hostNamespaceScript prefixes the guest script with the promise-
// backed slipway_host object; each op forwards to a CDP binding
// installed by bindHost, JSON-encoding arguments and results so the Go
// side never needs a JS runtime of its own to decode them.
const hostNamespaceScript = `
globalThis.slipway_host = {
  log_debug:  (msg) => Promise.resolve(__slipway_log_debug(String(msg))),
  log_info:   (msg) => Promise.resolve(__slipway_log_info(String(msg))),
  log_warn:   (msg) => Promise.resolve(__slipway_log_warn(String(msg))),
  log_error:  (msg) => Promise.resolve(__slipway_log_error(String(msg))),
  env:        (name) => Promise.resolve(__slipway_env(name)).then(JSON.parse),
  fetch_text: (url, body) => Promise.resolve(__slipway_fetch_text(JSON.stringify({url, body: body || ""}))).then(JSON.parse),
  fetch_bin:  (url, body) => Promise.resolve(__slipway_fetch_bin(JSON.stringify({url, body: body || ""}))).then(JSON.parse),
  load_text:  (handle, path) => Promise.resolve(__slipway_load_text(JSON.stringify({alias: handle, path}))).then(JSON.parse),
  load_bin:   (handle, path) => Promise.resolve(__slipway_load_bin(JSON.stringify({alias: handle, path}))).then(JSON.parse),
  encode_bin: (bytes) => Promise.resolve(__slipway_encode_bin(JSON.stringify(bytes))),
  decode_bin: (b64)   => Promise.resolve(__slipway_decode_bin(b64)).then(JSON.parse),
};
`

// bindHost installs one CDP binding per ABI op except run and font,
// which have no binding and no slipway_host property, and returns their
// teardown functions. Each binding receives a single JSON-or-plain
// string argument (go-rod's Expose delivers exactly one string per
// call) and returns a JSON-encoded {ok, value} or {ok: false, error}
// envelope, decoded by the JS wrapper above.
func bindHost(page *rod.Page, host *hostabi.Host) ([]func() error, error) {
	var stops []func() error

	bind := func(name string, fn func(arg string) (string, error)) error {
		stop, err := page.Expose(name, func(j gson.JSON) (any, error) {
			return fn(j.Str())
		})
		if err != nil {
			return err
		}
		stops = append(stops, stop)
		return nil
	}

	logFns := map[string]hostabi.Op{
		"__slipway_log_debug": hostabi.OpLogDebug,
		"__slipway_log_info":  hostabi.OpLogInfo,
		"__slipway_log_warn":  hostabi.OpLogWarn,
		"__slipway_log_error": hostabi.OpLogError,
	}
	for name, op := range logFns {
		op := op
		if err := bind(name, func(arg string) (string, error) {
			host.Log(op, arg)
			return "null", nil
		}); err != nil {
			return stops, err
		}
	}

	if err := bind("__slipway_env", func(arg string) (string, error) {
		v, err := host.EnvLookup(arg)
		return envelope(v, err)
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_load_text", func(arg string) (string, error) {
		var req struct{ Alias, Path string }
		if err := json.Unmarshal([]byte(arg), &req); err != nil {
			return "", err
		}
		v, err := host.LoadText(req.Alias, req.Path)
		return envelope(v, err)
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_load_bin", func(arg string) (string, error) {
		var req struct{ Alias, Path string }
		if err := json.Unmarshal([]byte(arg), &req); err != nil {
			return "", err
		}
		v, err := host.LoadBin(req.Alias, req.Path)
		return envelope(base64.StdEncoding.EncodeToString(v), err)
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_fetch_text", func(arg string) (string, error) {
		var req struct{ URL, Body string }
		if err := json.Unmarshal([]byte(arg), &req); err != nil {
			return "", err
		}
		v, err := host.FetchText(context.Background(), req.URL, req.Body)
		return envelope(v, err)
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_fetch_bin", func(arg string) (string, error) {
		var req struct{ URL, Body string }
		if err := json.Unmarshal([]byte(arg), &req); err != nil {
			return "", err
		}
		v, err := host.FetchBin(context.Background(), req.URL, []byte(req.Body))
		return envelope(base64.StdEncoding.EncodeToString(v), err)
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_encode_bin", func(arg string) (string, error) {
		var bytes []byte
		if err := json.Unmarshal([]byte(arg), &bytes); err != nil {
			return "", err
		}
		return hostabi.EncodeBin(bytes), nil
	}); err != nil {
		return stops, err
	}

	if err := bind("__slipway_decode_bin", func(arg string) (string, error) {
		b, err := hostabi.DecodeBin(arg)
		if err != nil {
			return envelope("", err)
		}
		encoded, err := json.Marshal(b)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}); err != nil {
		return stops, err
	}

	return stops, nil
}

func envelope(v string, err error) (string, error) {
	if err != nil {
		b, mErr := json.Marshal(err.Error())
		if mErr != nil {
			return "", mErr
		}
		return string(b), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
