// Package dvrapi implements the outbound half of the DVR REST contract:
// the small set of calls the detector and orchestrator make against the
// host DVR to index sidecar files, enumerate connected players, and hide
// our synthetic group from the DVR's own UI.
package dvrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fieldguide/dvrguide/internal/httpclient"
)

// Client talks to one DVR instance's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client for a DVR reachable at host:port (the "server" API,
// distinct from the per-client playback API port used by PlayRecording).
func New(host string, port int) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: httpclient.Default(),
	}
}

// File is one row of GET /dvr/files.
type File struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	GroupID  string `json:"group_id,omitempty"`
}

// Files lists indexed DVR files, used by the detector to locate the file id
// of a sidecar path it just wrote.
func (c *Client) Files(ctx context.Context) ([]File, error) {
	var out []File
	if err := c.getJSON(ctx, "/dvr/files", &out); err != nil {
		return nil, fmt.Errorf("dvrapi: list files: %w", err)
	}
	return out, nil
}

// ReprocessFile re-indexes a single sidecar file after the detector has
// written it.
func (c *Client) ReprocessFile(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/dvr/files/"+fileID+"/reprocess", nil)
	if err != nil {
		return fmt.Errorf("dvrapi: build reprocess request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("dvrapi: reprocess %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dvrapi: reprocess %s: unexpected status %d", fileID, resp.StatusCode)
	}
	return nil
}

// ScanScanner triggers a full DVR re-scan, used once at bootstrap so the
// freshly-written lane sidecar files get indexed.
func (c *Client) ScanScanner(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/dvr/scanner/scan", nil)
	if err != nil {
		return fmt.Errorf("dvrapi: build scan request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("dvrapi: scan: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dvrapi: scan: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ClientInfo is one connected-player row of GET /dvr/clients/info.
type ClientInfo struct {
	IP       string `json:"ip"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
	Channel  string `json:"channel,omitempty"`
	// APIPort is the client's own local API port, used by PlayRecording;
	// some DVR versions omit it, in which case callers fall back to the
	// configured default DVR API port.
	APIPort int `json:"api_port,omitempty"`
	// SeenAt is unix seconds of the DVR's last contact with this client.
	SeenAt int64 `json:"seen_at,omitempty"`
}

// ClientsInfo enumerates connected playback devices via
// GET /dvr/clients/info.
func (c *Client) ClientsInfo(ctx context.Context) ([]ClientInfo, error) {
	var out []ClientInfo
	if err := c.getJSON(ctx, "/dvr/clients/info", &out); err != nil {
		return nil, fmt.Errorf("dvrapi: clients info: %w", err)
	}
	return out, nil
}

// Group is one row of GET /dvr/groups?all=true.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Groups lists every DVR group, including hidden ones
// (GET /dvr/groups?all=true).
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := c.getJSON(ctx, "/dvr/groups?all=true", &out); err != nil {
		return nil, fmt.Errorf("dvrapi: list groups: %w", err)
	}
	return out, nil
}

// HideGroup sets a group's visibility to hidden, keeping our synthetic
// lane/direct groups out of the DVR's own channel-management UI
// (PUT /dvr/groups/{id}/visibility/hidden).
func (c *Client) HideGroup(ctx context.Context, groupID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/dvr/groups/"+groupID+"/visibility/hidden", nil)
	if err != nil {
		return fmt.Errorf("dvrapi: build hide group request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("dvrapi: hide group %s: %w", groupID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dvrapi: hide group %s: unexpected status %d", groupID, resp.StatusCode)
	}
	return nil
}

// PlayRecording POSTs the client-local playback trigger
// (http://{client_ip}:{api_port}/api/play/recording/{file_id}): the final
// step of the detector's orchestration, hitting the client's own API port
// directly rather than the DVR server.
func PlayRecording(ctx context.Context, clientIP string, apiPort int, fileID string) error {
	url := fmt.Sprintf("http://%s:%d/api/play/recording/%s", clientIP, apiPort, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("dvrapi: build play recording request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, httpclient.Default(), req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("dvrapi: play recording %s on %s: %w", fileID, clientIP, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dvrapi: play recording %s on %s: unexpected status %d", fileID, clientIP, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
