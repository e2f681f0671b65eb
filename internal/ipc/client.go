package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// ScanStart begins a scan session.
func (c *Client) ScanStart(req ScanStartRequest) (*ScanStartResponse, error) {
	var resp ScanStartResponse
	if err := c.call("ScanStart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanStatus retrieves the current scan progress.
func (c *Client) ScanStatus() (*ScanStatusResponse, error) {
	var resp ScanStatusResponse
	if err := c.call("ScanStatus", ScanStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanCancel requests cancellation of the active scan.
func (c *Client) ScanCancel() (*ScanCancelResponse, error) {
	var resp ScanCancelResponse
	if err := c.call("ScanCancel", ScanCancelRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanAcknowledge clears a finished scan session.
func (c *Client) ScanAcknowledge() (*ScanAcknowledgeResponse, error) {
	var resp ScanAcknowledgeResponse
	if err := c.call("ScanAcknowledge", ScanAcknowledgeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModelsList returns the merged library view.
func (c *Client) ModelsList(req ModelsListRequest) (*ModelsListResponse, error) {
	var resp ModelsListResponse
	if err := c.call("ModelsList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheHealth retrieves cache database diagnostics.
func (c *Client) CacheHealth() (*CacheHealthResponse, error) {
	var resp CacheHealthResponse
	if err := c.call("CacheHealth", CacheHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheClear removes all cached paths and entries.
func (c *Client) CacheClear() (*CacheClearResponse, error) {
	var resp CacheClearResponse
	if err := c.call("CacheClear", CacheClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CachePrune removes path records for files missing on disk.
func (c *Client) CachePrune() (*CachePruneResponse, error) {
	var resp CachePruneResponse
	if err := c.call("CachePrune", CachePruneRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsGet retrieves the effective daemon configuration.
func (c *Client) SettingsGet() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("SettingsGet", SettingsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves daemon runtime information.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.call("Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
