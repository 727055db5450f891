// Package sandbox defines the shared Runner contract implemented by the
// WASM and JS backends (§4.9/§4.10): marshal input, invoke the guest
// entrypoint, demarshal output, and report phase timings.
package sandbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// Runner executes one component's entrypoint against a prepared input,
// returning the raw output and the phase timings that feed a run's
// RunMetadata (§3 "RunMetadata").
type Runner interface {
	// Supports reports whether this runner's backend can execute the
	// given component package (by inspecting its files, e.g. a ".wasm"
	// vs. a ".js" entrypoint).
	Supports(files loader.ComponentFiles) bool

	Run(ctx context.Context, component *rig.Component, files loader.ComponentFiles, input json.RawMessage, host *hostabi.Host) (json.RawMessage, execstate.RunMetadata, error)
}

// Timed runs fn and returns its result alongside the elapsed duration.
// wasmrunner uses it to time its compile step (RunMetadata's
// PrepareComponent); jsrunner times its phases inline.
func Timed[T any](fn func() (T, error)) (T, time.Duration, error) {
	start := time.Now()
	v, err := fn()
	return v, time.Since(start), err
}
