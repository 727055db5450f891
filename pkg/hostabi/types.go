// Package hostabi implements the Host ABI surface (§4.9): the op table
// both sandbox backends expose to a guest component, plus the error
// types that cross the guest/host boundary. Op results never cross as
// native exceptions; a failed fetch becomes a serialized RequestError
// handed back to the guest, and a guest panic/exception becomes a
// ComponentError returned to the session.
package hostabi

import "github.com/slipwayhq/slipway/pkg/permission"

// Op names the host ABI operations listed in §4.9, mirrored as the
// property names on the JS backend's slipway_host object and as
// imported host functions on the WASM backend.
type Op string

const (
	OpLogDebug  Op = "log_debug"
	OpLogInfo   Op = "log_info"
	OpLogWarn   Op = "log_warn"
	OpLogError  Op = "log_error"
	OpFont      Op = "font"
	OpFetchBin  Op = "fetch_bin"
	OpFetchText Op = "fetch_text"
	OpRun       Op = "run"
	OpLoadBin   Op = "load_bin"
	OpLoadText  Op = "load_text"
	OpEnv       Op = "env"
	OpEncodeBin Op = "encode_bin"
	OpDecodeBin Op = "decode_bin"
)

// RequestError is handed back to the guest for a recoverable failure —
// network error, timeout, or non-2xx response (§7 "External fetch
// error ... yes, by the guest"). The guest decides whether to retry,
// fall back, or surface its own failure.
type RequestError struct {
	Message    string
	StatusCode int // 0 when no response was received at all
}

func (e *RequestError) Error() string { return e.Message }

// ComponentError is the non-recoverable translation of a guest panic or
// unhandled exception (§7 "Guest panic/exception ... translated to
// ComponentError").
type ComponentError struct {
	Message string
	Inner   string
}

func (e *ComponentError) Error() string {
	if e.Inner == "" {
		return e.Message
	}
	return e.Message + ": " + e.Inner
}

// PermissionError wraps a permission.DeniedError, which carries the full
// call-chain trail. The Host ops in this package return the
// *permission.DeniedError from CallChain.Check directly, not wrapped in
// PermissionError.
type PermissionError struct {
	*permission.DeniedError
}
