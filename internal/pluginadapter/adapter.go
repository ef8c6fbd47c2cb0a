// Package pluginadapter is the thin glue a transport layer uses to push a
// failed request onto its own dedicated queue. It owns exactly one
// *queue.Queue and never shares it, matching the host-capability contract
// the rest of this repository is built against.
package pluginadapter

import (
	"context"
	"net/http"

	"github.com/replayq/replayq/internal/queue"
)

// Adapter wraps a single named queue for use by a request-failure hook.
type Adapter struct {
	q *queue.Queue
}

// NewAdapter constructs an Adapter backed by a freshly created queue named
// name. It fails with the same *queue.Error as queue.New if name is
// already registered.
func NewAdapter(name string, store *queue.Store, opts ...queue.Option) (*Adapter, error) {
	q, err := queue.New(name, store, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{q: q}, nil
}

// FetchDidFail is called by the transport layer whenever an outbound
// request could not be delivered. It pushes req onto the adapter's queue
// for later replay.
func (a *Adapter) FetchDidFail(ctx context.Context, req *http.Request) error {
	return a.q.PushRequest(ctx, &queue.PushOptions{Request: req})
}

// Close releases the adapter's queue name.
func (a *Adapter) Close() {
	a.q.Close()
}
