package wasmrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/slipwayhq/slipway/pkg/hostabi"
)

// hostModuleName is the import namespace guest modules bind their ABI
// calls to, the WASM-side counterpart of the JS backend's
// slipway_host global (§4.9).
const hostModuleName = "slipway_host"

// buildHostModule instantiates the host module bound to this run's
// permission-scoped Host. It exports the four log ops (log_debug,
// log_info, log_warn, log_error), each taking its message as a
// (ptr, len) pair into the guest's own linear memory, written by the
// guest before the call and read by the host after. The other ABI ops
// (env, fetch_*, load_*, run, font, encode_bin, decode_bin) are not
// exported to WASM guests.
func buildHostModule(ctx context.Context, runtime wazero.Runtime, host *hostabi.Host) (api.Closer, error) {
	builder := runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			msg := readString(m, ptr, length)
			host.Log(hostabi.OpLogInfo, msg)
		}).Export(string(hostabi.OpLogInfo))

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			msg := readString(m, ptr, length)
			host.Log(hostabi.OpLogError, msg)
		}).Export(string(hostabi.OpLogError))

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			msg := readString(m, ptr, length)
			host.Log(hostabi.OpLogWarn, msg)
		}).Export(string(hostabi.OpLogWarn))

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			msg := readString(m, ptr, length)
			host.Log(hostabi.OpLogDebug, msg)
		}).Export(string(hostabi.OpLogDebug))

	return builder.Instantiate(ctx)
}

func readString(m api.Module, ptr, length uint32) string {
	b, ok := m.Memory().Read(ptr, length)
	if !ok {
		return ""
	}
	return string(b)
}

// invokeRun calls the guest's exported "run" function with input
// written into guest memory, and reads back the (ptr, len) result pair
// it returns. The entrypoint contract mirrors a typical wazero
// component shape: export a `run(ptr, len) -> packed (ptr<<32 | len)`
// function and an `alloc(size) -> ptr` allocator the host uses to place
// the input.
func invokeRun(ctx context.Context, mod api.Module, input json.RawMessage) ([]byte, error) {
	alloc := mod.ExportedFunction("alloc")
	run := mod.ExportedFunction("run")
	if alloc == nil || run == nil {
		return nil, fmt.Errorf("guest module does not export alloc/run")
	}

	res, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("guest alloc failed: %w", err)
	}
	ptr := uint32(res[0])

	if !mod.Memory().Write(ptr, input) {
		return nil, fmt.Errorf("failed to write input into guest memory")
	}

	packed, err := run.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("guest run panicked: %w", err)
	}

	outPtr := uint32(packed[0] >> 32)
	outLen := uint32(packed[0])
	out, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("failed to read guest output from memory")
	}
	return append([]byte(nil), out...), nil
}

// logWriter adapts the module-config stdout/stderr sink to the host
// log, logging each raw guest write as one message (§4.10 "stdout/stderr are
// tee'd into the host log at info/error").
type logWriter struct {
	host  *hostabi.Host
	level string
}

func newLogWriter(host *hostabi.Host, level string) io.Writer {
	return &logWriter{host: host, level: level}
}

func (w *logWriter) Write(p []byte) (int, error) {
	op := hostabi.OpLogInfo
	if w.level == "error" {
		op = hostabi.OpLogError
	}
	w.host.Log(op, string(p))
	return len(p), nil
}
