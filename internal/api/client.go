// Package api is the HTTP client for the task stack backend.
package api

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

	"github.com/fentz26/taskstack/internal/models"
)

// DefaultClientTimeout is the default timeout for request/response calls.
const DefaultClientTimeout = 10 * time.Second

// DefaultBaseURL is where the dev backend listens unless configured otherwise.
const DefaultBaseURL = "http://127.0.0.1:7466"

// Client wraps HTTP calls to the task stack API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; the event stream stays open indefinitely.
	streamClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the timeout for request/response calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. The stream client keeps
// its transport but drops the timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = &http.Client{Transport: hc.Transport}
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: DefaultClientTimeout},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTasks fetches the whole stack, top first.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks, nil); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task, ErrNotFound)
	return task, err
}

// PeekTask returns the top of the stack without removing it.
func (c *Client) PeekTask(ctx context.Context) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodGet, "/tasks/peek", nil, &task, ErrEmptyStack)
	return task, err
}

// PushTask creates a task on top of the stack.
func (c *Client) PushTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPost, "/tasks", in, &task, nil)
	return task, err
}

// ToggleTask flips the completed flag and returns the updated task.
func (c *Client) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id)+"/toggle", nil, &task, ErrNotFound)
	return task, err
}

// PopTask removes the top of the stack. The returned task is the zero value
// when the response body could not be decoded.
func (c *Client) PopTask(ctx context.Context) (models.Task, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodDelete, "/tasks/pop", nil, &raw, ErrEmptyStack); err != nil {
		return models.Task{}, err
	}
	var task models.Task
	_ = json.Unmarshal(raw, &task)
	return task, nil
}

// Subscribe opens the push-event stream. The caller closes the body; the
// stream ends when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readError(resp, nil)
	}
	return resp.Body, nil
}

// Health reports whether the backend answers its health check.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var health struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health, nil); err != nil {
		return false, err
	}
	return health.OK, nil
}

// do sends a JSON request and decodes a JSON response into out. A *[]byte
// out receives the raw body. notFound is the sentinel a 404 maps to.
func (c *Client) do(ctx context.Context, method, path string, in, out any, notFound error) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp, notFound)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readError(resp *http.Response, notFound error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		apiErr.err = notFound
	}
	return apiErr
}
