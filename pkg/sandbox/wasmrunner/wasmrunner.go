// Package wasmrunner implements the WASM sandbox backend (§4.10):
// instantiate the guest module in a store carrying the host ABI object,
// marshal input/output across shared linear memory, and tee guest
// stdout/stderr into the host log.
package wasmrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/rig"
	"github.com/slipwayhq/slipway/pkg/sandbox"
)

// entrypointFile is the conventional name of a WASM component's guest
// module within its package, sibling to slipway_component.json.
const entrypointFile = "entrypoint.wasm"

// Runner lazily compiles and caches a guest module per component
// reference, mirroring pkg/browser.Manager's ensureBrowser-then-pool
// shape: the expensive resource (here, module compilation) is built
// once and reused across runs.
type Runner struct {
	runtime wazero.Runtime

	mu      sync.Mutex
	modules map[string]wazero.CompiledModule
}

// New constructs a Runner backed by a single wazero runtime shared
// across every guest invocation.
func New(ctx context.Context) *Runner {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	return &Runner{runtime: rt, modules: make(map[string]wazero.CompiledModule)}
}

// Close releases the underlying wazero runtime and every cached module.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

func (r *Runner) Supports(files loader.ComponentFiles) bool {
	return files.Exists(entrypointFile)
}

func (r *Runner) compiled(ctx context.Context, key string, files loader.ComponentFiles) (wazero.CompiledModule, time.Duration, error) {
	return sandbox.Timed(func() (wazero.CompiledModule, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if cm, ok := r.modules[key]; ok {
			return cm, nil
		}

		bin, err := files.GetBin(entrypointFile)
		if err != nil {
			return nil, fmt.Errorf("wasmrunner: read entrypoint: %w", err)
		}
		cm, err := r.runtime.CompileModule(ctx, bin)
		if err != nil {
			return nil, fmt.Errorf("wasmrunner: compile module: %w", err)
		}
		r.modules[key] = cm
		return cm, nil
	})
}

// Run instantiates the compiled module, serializes input into guest
// memory, invokes the exported `run` function, and reads the output
// buffer back (§4.10 "Marshals: input JSON serialized -> guest buffer
// -> guest returns output buffer -> deserialize").
func (r *Runner) Run(ctx context.Context, component *rig.Component, files loader.ComponentFiles, input json.RawMessage, host *hostabi.Host) (json.RawMessage, execstate.RunMetadata, error) {
	var meta execstate.RunMetadata

	key := componentKey(component)
	cm, prepareDur, err := r.compiled(ctx, key, files)
	meta.PrepareComponent = prepareDur
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "wasm module preparation failed", Inner: err.Error()}
	}

	instStart := time.Now()
	hostModule, err := buildHostModule(ctx, r.runtime, host)
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "host module build failed", Inner: err.Error()}
	}
	defer hostModule.Close(ctx)

	cfg := wazero.NewModuleConfig().
		WithStdout(newLogWriter(host, "info")).
		WithStderr(newLogWriter(host, "error"))

	mod, err := r.runtime.InstantiateModule(ctx, cm, cfg)
	meta.PrepareInput = time.Since(instStart)
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "module instantiation panicked", Inner: err.Error()}
	}
	defer mod.Close(ctx)

	callStart := time.Now()
	output, err := invokeRun(ctx, mod, input)
	meta.Call = time.Since(callStart)
	if err != nil {
		return nil, meta, &hostabi.ComponentError{Message: "guest run failed", Inner: err.Error()}
	}

	processStart := time.Now()
	if err := validateJSON(output); err != nil {
		meta.ProcessOutput = time.Since(processStart)
		return nil, meta, &hostabi.ComponentError{Message: "guest produced invalid JSON output", Inner: err.Error()}
	}
	meta.ProcessOutput = time.Since(processStart)

	return json.RawMessage(output), meta, nil
}

func componentKey(c *rig.Component) string {
	return fmt.Sprintf("%s.%s.%s", c.Publisher, c.Name, c.Version.String())
}

func validateJSON(b []byte) error {
	var v any
	return json.Unmarshal(b, &v)
}
