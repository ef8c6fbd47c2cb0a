package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replayq/replayq/internal/queue"
)

func TestReplayMissingRequiredFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyQueue(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := queue.Open(dbPath)
	require.NoError(t, err)
	st.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "drained")
}

func TestReplayWithEntry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	seedQueue(t, dbPath, "orders", server.URL+"/a")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "orders")
	assert.Contains(t, buf.String(), "drained")
}

func TestReplayWithEntry_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	seedQueue(t, dbPath, "orders", server.URL+"/a")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"status": "ok"`)
}

func TestReplayReportsFailureExitCode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	// A 500 response is a resolved fetch, not a failure (see queue.ReplayRequests).
	// Only a connection-level rejection counts, so point at a port nothing listens on.
	seedQueue(t, dbPath, "orders", "http://127.0.0.1:1/unreachable")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReplayFiveHundredCountsAsDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	seedQueue(t, dbPath, "orders", server.URL+"/a")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "drained")
}

// TestReplayFetchesEachEntryExactlyOnce guards against queue.New's
// cold-start replay (run when no background-sync trigger is available)
// draining the queue once, followed by the explicit ReplayRequests call in
// runReplay draining it again. A hijacked connection that drops without a
// response is a genuine fetch rejection, so under the old NoopTrigger-based
// construction this entry would be fetched, re-queued, then fetched again
// by the explicit call — two hits instead of one.
func TestReplayFetchesEachEntryExactlyOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	t.Cleanup(server.Close)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	seedQueue(t, dbPath, "orders", server.URL+"/a")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--queue", "orders"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestReplayNonExistentDatabaseDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", "/nonexistent/path/test.db", "--queue", "orders"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestReplayHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Replay")
	assert.Contains(t, output, "--db")
	assert.Contains(t, output, "--queue")
}

// seedQueue opens dbPath, pushes one GET request for url onto name, and
// closes the store, leaving the entry durable on disk for a later command
// invocation to pick up.
func seedQueue(t *testing.T, dbPath, name, url string) {
	t.Helper()
	st, err := queue.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	reg := queue.NewNameRegistry()
	q, err := queue.New(name, st, queue.WithRegistry(reg), queue.WithSyncTrigger(queue.NoopTrigger{}))
	require.NoError(t, err)
	defer q.Close()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	require.NoError(t, q.PushRequest(context.Background(), &queue.PushOptions{Request: req}))
}
