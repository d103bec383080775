// Package remotetask wraps long-running remote jobs behind a
// submit/poll/fetch protocol.
package remotetask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TaskFailedError reports an explicit remote failure. Detail is recovered
// from the service with a second fetch so callers see a human-readable cause.
type TaskFailedError struct {
	TaskID string
	Detail string
}

func (e *TaskFailedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote task %s failed", e.TaskID)
	}
	return fmt.Sprintf("remote task %s failed: %s", e.TaskID, e.Detail)
}

// TaskTimeoutError reports that the wall-clock ceiling elapsed before the
// task settled. Kept distinct from TaskFailedError so callers can tell an
// overloaded service from broken input.
type TaskTimeoutError struct {
	TaskID  string
	Elapsed time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("remote task %s still pending after %s", e.TaskID, e.Elapsed)
}

// Task statuses reported by the remote service.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Client talks to one remote task service over its shared HTTP pool.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Config configures the remote task client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-request timeout, not the poll ceiling
}

func NewClient(cfg Config, pool *http.Client) *Client {
	if pool == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		pool = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: pool}
}

// Submit posts the job payload and returns the assigned task id.
func (c *Client) Submit(ctx context.Context, payload any) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/submit", payload, &resp); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("submit task: empty task_id in response")
	}
	return resp.TaskID, nil
}

// PollUntilDone polls at a fixed interval until the task reports success or
// failure, bounded by maxWait. On failure it fetches the error detail before
// returning. Exceeding maxWait yields a TaskTimeoutError.
func (c *Client) PollUntilDone(ctx context.Context, taskID string, interval, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		status, err := c.fetchStatus(ctx, taskID)
		if err != nil {
			return err
		}
		switch status {
		case StatusSuccess:
			return nil
		case StatusFailure:
			detail, _ := c.fetchErrorDetail(ctx, taskID)
			return &TaskFailedError{TaskID: taskID, Detail: detail}
		}

		if time.Now().After(deadline) {
			return &TaskTimeoutError{TaskID: taskID, Elapsed: maxWait}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// FetchResult decodes the finished task's result into out.
func (c *Client) FetchResult(ctx context.Context, taskID string, out any) error {
	if err := c.getJSON(ctx, fmt.Sprintf("%s/result/%s", c.baseURL, taskID), out); err != nil {
		return fmt.Errorf("fetch task result: %w", err)
	}
	return nil
}

func (c *Client) fetchStatus(ctx context.Context, taskID string) (string, error) {
	var resp struct {
		TaskStatus string `json:"task_status"`
	}
	url := fmt.Sprintf("%s/status/%s?wait=1", c.baseURL, taskID)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return "", fmt.Errorf("fetch task status: %w", err)
	}
	return resp.TaskStatus, nil
}

func (c *Client) fetchErrorDetail(ctx context.Context, taskID string) (string, error) {
	var resp struct {
		Error string `json:"error"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/result/%s", c.baseURL, taskID), &resp); err != nil {
		return "", err
	}
	return resp.Error, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
