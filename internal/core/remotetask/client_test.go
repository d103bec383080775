package remotetask

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskServer fakes the remote chunking service's submit/status/result
// protocol for one task.
type taskServer struct {
	statuses []string // statuses returned by successive /status polls
	result   any      // payload served by /result
	polls    int
	auth     string
}

func (ts *taskServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		ts.auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1"})
	})
	mux.HandleFunc("/status/task-1", func(w http.ResponseWriter, r *http.Request) {
		status := ts.statuses[len(ts.statuses)-1]
		if ts.polls < len(ts.statuses) {
			status = ts.statuses[ts.polls]
		}
		ts.polls++
		json.NewEncoder(w).Encode(map[string]string{"task_status": status})
	})
	mux.HandleFunc("/result/task-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ts.result)
	})
	return mux
}

func TestSubmitPollFetchHappyPath(t *testing.T) {
	ts := &taskServer{
		statuses: []string{StatusPending, StatusPending, StatusSuccess},
		result:   map[string]string{"value": "done"},
	}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, srv.Client())

	id, err := c.Submit(context.Background(), map[string]string{"job": "x"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, "Bearer secret", ts.auth)

	require.NoError(t, c.PollUntilDone(context.Background(), id, time.Millisecond, time.Second))
	assert.Equal(t, 3, ts.polls)

	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.FetchResult(context.Background(), id, &out))
	assert.Equal(t, "done", out.Value)
}

func TestPollSurfacesRemoteFailureDetail(t *testing.T) {
	ts := &taskServer{
		statuses: []string{StatusPending, StatusFailure},
		result:   map[string]string{"error": "unsupported encoding"},
	}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())

	err := c.PollUntilDone(context.Background(), "task-1", time.Millisecond, time.Second)
	require.Error(t, err)

	var failed *TaskFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "task-1", failed.TaskID)
	assert.Equal(t, "unsupported encoding", failed.Detail)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestPollTimeoutIsDistinctFromFailure(t *testing.T) {
	ts := &taskServer{statuses: []string{StatusPending}}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())

	err := c.PollUntilDone(context.Background(), "task-1", time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)

	var timeout *TaskTimeoutError
	require.ErrorAs(t, err, &timeout, "an overloaded service must not look like broken input")
	var failed *TaskFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Equal(t, "task-1", timeout.TaskID)
}

func TestSubmitRejectsEmptyTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	_, err := c.Submit(context.Background(), map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty task_id")
}

func TestSubmitPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
	_, err := c.Submit(context.Background(), map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
