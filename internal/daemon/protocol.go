package daemon

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
)

// Request is one call over the daemon's control socket. Method dispatch
// mirrors the RPC shape the teacher uses for its daemon protocol; this
// engine frames plain JSON instead of protobuf, since the run has no
// protoc toolchain available to generate gRPC stubs (recorded in
// DESIGN.md as a scoped, justified substitution).
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is what the daemon sends back for one Request.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// maxMessageBytes guards against a corrupt or hostile length prefix
// forcing an unbounded allocation.
const maxMessageBytes = 64 << 20

// writeMessage frames v as a 4-byte big-endian length prefix followed by
// its JSON encoding.
func writeMessage(w io.Writer, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// readMessage reads one length-prefixed JSON message into v.
func readMessage(r io.Reader, v interface{}) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxMessageBytes {
		return errors.New("daemon: message exceeds maximum size")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// Method names understood by the daemon server.
const (
	MethodHello                = "Hello"
	MethodNotifyOutputsWritten = "NotifyOutputsWritten"
	MethodGetChangedOutputs    = "GetChangedOutputs"
	MethodStatus               = "Status"
	MethodShutdown             = "Shutdown"
)

// HelloParams identifies the calling CLI, so a version mismatch against a
// long-lived daemon can be detected before it serves stale state.
type HelloParams struct {
	Version string `json:"version"`
}

// NotifyOutputsWrittenParams records, for hash, the current on-disk
// contents matched by globs under pkg (repo-relative), so a later
// GetChangedOutputs for the same hash can tell whether they're still
// intact (spec §4.I "indexed store {hash -> {glob_set, known_file_hashes}}").
type NotifyOutputsWrittenParams struct {
	Hash    string   `json:"hash"`
	Package string   `json:"package"`
	Globs   []string `json:"globs"`
}

// GetChangedOutputsParams asks which of globs (scoped to pkg) have changed
// since the matching NotifyOutputsWritten(hash, pkg, globs) call.
type GetChangedOutputsParams struct {
	Hash    string   `json:"hash"`
	Package string   `json:"package"`
	Globs   []string `json:"globs"`
}

// GetChangedOutputsResult is the subset of the requested globs whose
// matched file set has changed (or the full requested set, if hash is
// unknown to the daemon).
type GetChangedOutputsResult struct {
	Changed []string `json:"changed"`
}

// StatusResult reports the daemon's own health.
type StatusResult struct {
	UptimeSeconds int `json:"uptimeSeconds"`
	WatchedDirs   int `json:"watchedDirs"`
}
