// Package client is the Go client for the gpiogw HTTP API, used by the CLI.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/gpiogw/internal/api"
	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/task"
)

// DefaultAddr is the API address used when none is configured.
const DefaultAddr = "http://127.0.0.1:8080"

var (
	// ErrNotFound is matched by errors.Is for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched by errors.Is for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// Client talks to one gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

// New creates a client for addr ("host:port" or a full URL). token may be empty.
func New(addr, token string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		stream:  &http.Client{},
	}
}

// BaseURL returns the normalised API address.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping calls GET /gpio/ping.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, c.http, http.MethodGet, "/gpio/ping", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(b)) != "ping" {
		return fmt.Errorf("unexpected ping response %q", string(b))
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (api.HealthzResponse, error) {
	var out api.HealthzResponse
	err := c.getJSON(ctx, "/healthz", &out)
	return out, err
}

// SendActions posts a JSON array of actions. A 400 carrying per-entry
// rejections still decodes into the returned response alongside the error.
func (c *Client) SendActions(ctx context.Context, body []byte) (api.ActionResponse, error) {
	var out api.ActionResponse
	resp, err := c.doRaw(ctx, c.http, http.MethodPost, "/gpio/action", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read response: %w", err)
	}
	_ = json.Unmarshal(data, &out)
	if resp.StatusCode/100 != 2 {
		return out, apiError(resp.StatusCode, data)
	}
	return out, nil
}

func (c *Client) Tasks(ctx context.Context) ([]task.Info, error) {
	var out api.TaskListResponse
	if err := c.getJSON(ctx, "/gpio/task", &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) Task(ctx context.Context, id string) (task.Info, error) {
	var out task.Info
	err := c.getJSON(ctx, "/gpio/task/"+url.PathEscape(id), &out)
	return out, err
}

// CancelTask requests cancellation of a running task.
func (c *Client) CancelTask(ctx context.Context, id string) error {
	resp, err := c.do(ctx, c.http, http.MethodDelete, "/gpio/task/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) Plugins(ctx context.Context) ([]api.PluginSummary, error) {
	var out api.PluginListResponse
	if err := c.getJSON(ctx, "/gpio/plugins", &out); err != nil {
		return nil, err
	}
	return out.Plugins, nil
}

func (c *Client) Configs(ctx context.Context) ([]api.ConfigSummary, error) {
	var out api.ConfigListResponse
	if err := c.getJSON(ctx, "/gpio/config", &out); err != nil {
		return nil, err
	}
	return out.Configs, nil
}

func (c *Client) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	path := "/gpio/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out api.HistoryResponse
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// Stream reads GET /gpio/events and calls fn for every event until ctx is
// done or the server closes the stream.
func (c *Client) Stream(ctx context.Context, fn func(events.Event)) error {
	resp, err := c.do(ctx, c.stream, http.MethodGet, "/gpio/events", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = readSSE(resp.Body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readSSE parses an event stream. Comment lines are ignored.
func readSSE(r io.Reader, fn func(events.Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var ev events.Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				ev.Data = json.RawMessage(strings.Join(data, "\n"))
				ev.At = time.Now().UTC()
				fn(ev)
			}
			ev, data = events.Event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			ev.ID, _ = strconv.ParseInt(strings.TrimSpace(line[3:]), 10, 64)
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line[5:], " "))
		}
	}
	return scanner.Err()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, c.http, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do performs a request and turns non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body io.Reader) (*http.Response, error) {
	resp, err := c.doRaw(ctx, hc, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, apiError(resp.StatusCode, data)
	}
	return resp, nil
}

func (c *Client) doRaw(ctx context.Context, hc *http.Client, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func apiError(status int, body []byte) error {
	var e api.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
