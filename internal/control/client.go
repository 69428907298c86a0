package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/presence"
)

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for addr, which may be host:port or a URL.
func NewClient(addr string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control API returned %d: %s", e.StatusCode, e.Message)
}

// Command runs a command by action name or free text.
func (c *Client) Command(ctx context.Context, input string, args ...string) (orchestrator.Reply, error) {
	var reply orchestrator.Reply
	path := "/v1/commands"
	body := CommandRequest{Args: args}
	if !strings.ContainsAny(input, " /") && input != "" {
		path += "/" + url.PathEscape(input)
	} else {
		body.Input = input
	}
	err := c.do(ctx, http.MethodPost, path, body, &reply)
	return reply, err
}

// Status returns the engine snapshot.
func (c *Client) Status(ctx context.Context) (orchestrator.Snapshot, error) {
	var snap orchestrator.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/status", nil, &snap)
	return snap, err
}

// SendSample forwards one camera observation.
func (c *Client) SendSample(ctx context.Context, s presence.Sample) error {
	return c.do(ctx, http.MethodPost, "/v1/camera/sample", s, nil)
}

// ReportCameraError tells the engine the camera producer failed.
func (c *Client) ReportCameraError(ctx context.Context, msg string) error {
	return c.do(ctx, http.MethodPost, "/v1/camera/error", CameraErrorRequest{Error: msg}, nil)
}

// ApplyConfig sends a runtime patch and returns the fields it set.
func (c *Client) ApplyConfig(ctx context.Context, req ConfigRequest) ([]string, error) {
	var resp ConfigResponse
	err := c.do(ctx, http.MethodPost, "/v1/config", req, &resp)
	return resp.Fields, err
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		} else {
			var reply orchestrator.Reply
			if json.Unmarshal(data, &reply) == nil && reply.Message != "" {
				msg = reply.Message
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
