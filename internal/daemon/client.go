package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// Client talks to a running daemon over its unix socket.
type Client struct {
	conn net.Conn
}

// Dial connects to repoRoot's daemon. Callers should check for a
// connection-refused style error and fall back to running without a
// daemon rather than starting one implicitly (spec: the daemon only ever
// accelerates a run, a run must succeed without it).
func Dial(repoRoot turbopath.AbsoluteSystemPath, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", SocketPath(repoRoot).ToString(), timeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if err := writeMessage(c.conn, Request{Method: method, Params: body}); err != nil {
		return err
	}
	var resp Response
	if err := readMessage(c.conn, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("daemon: %s", resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}

// Hello announces the caller's version to the daemon.
func (c *Client) Hello(version string) error {
	return c.call(MethodHello, HelloParams{Version: version}, nil)
}

// NotifyOutputsWritten tells the daemon that hash's task just wrote pkg's
// outputs matched by globs, so the daemon can snapshot them for later
// GetChangedOutputs calls (spec §4.I).
func (c *Client) NotifyOutputsWritten(hash, pkg string, globs []string) error {
	return c.call(MethodNotifyOutputsWritten, NotifyOutputsWrittenParams{Hash: hash, Package: pkg, Globs: globs}, nil)
}

// GetChangedOutputs asks which of globs (scoped to pkg) have changed since
// hash's outputs were last recorded via NotifyOutputsWritten. An unknown
// hash reports every glob as changed, so the caller falls back to a full
// on-disk check (spec §4.I).
func (c *Client) GetChangedOutputs(hash, pkg string, globs []string) ([]string, error) {
	var result GetChangedOutputsResult
	err := c.call(MethodGetChangedOutputs, GetChangedOutputsParams{Hash: hash, Package: pkg, Globs: globs}, &result)
	return result.Changed, err
}

// Status reports the daemon's own health.
func (c *Client) Status() (StatusResult, error) {
	var result StatusResult
	err := c.call(MethodStatus, struct{}{}, &result)
	return result, err
}

// Shutdown asks the daemon to stop serving.
func (c *Client) Shutdown() error {
	return c.call(MethodShutdown, struct{}{}, nil)
}
