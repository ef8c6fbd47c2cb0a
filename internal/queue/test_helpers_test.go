package queue

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/replayq/replayq/internal/httpreq"
)

// createTestStore creates a fresh on-disk store in the test's temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry builds a minimal Entry for a GET request, stamped with ts.
func createTestEntry(url string, ts time.Time) Entry {
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	rec, _ := httpreq.FromRequest(req)
	return Entry{
		Request:   rec,
		Timestamp: ts,
	}
}
