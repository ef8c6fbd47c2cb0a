// Package queue implements a durable, per-name FIFO queue of failed
// outbound HTTP requests, replayed in enqueue order when a sync trigger
// fires or, if the host offers no such trigger, eagerly at construction.
package queue

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/replayq/replayq/internal/clock"
	"github.com/replayq/replayq/internal/httpreq"
)

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithOnSync overrides the handler run when the queue's sync tag fires.
// The default handler is ReplayRequests.
func WithOnSync(fn func(ctx context.Context, q *Queue) error) Option {
	return func(q *Queue) { q.onSync = fn }
}

// WithMaxRetentionTime overrides the default 7-day retention window.
func WithMaxRetentionTime(d time.Duration) Option {
	return func(q *Queue) { q.maxRetentionTime = d }
}

// WithSyncTrigger overrides the default NoopTrigger, wiring the queue to a
// real scheduler (e.g. an *EventBusTrigger shared by a whole process).
func WithSyncTrigger(t SyncTrigger) Option {
	return func(q *Queue) { q.trigger = t }
}

// WithFetcher overrides the default *HTTPFetcher.
func WithFetcher(f Fetcher) Option {
	return func(q *Queue) { q.fetcher = f }
}

// WithClock overrides the default clock.SystemClock{}, used to stamp
// entries and evaluate retention expiry.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithRegistry overrides the package-level DefaultRegistry. Exists so tests
// can construct many same-named queues across independent cases without
// interfering with each other.
func WithRegistry(r *NameRegistry) Option {
	return func(q *Queue) { q.registry = r }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithTag overrides the default sync tag ("replayq:" + name) used when
// registering and subscribing with the SyncTrigger.
func WithTag(tag string) Option {
	return func(q *Queue) { q.tag = tag }
}

// Queue is a named, durable, FIFO queue of failed requests backed by a
// shared Store. No two Queue values in a process may share a name; New
// enforces this via a NameRegistry.
type Queue struct {
	name             string
	store            *Store
	trigger          SyncTrigger
	fetcher          Fetcher
	clock            clock.Clock
	logger           *slog.Logger
	registry         *NameRegistry
	onSync           func(ctx context.Context, q *Queue) error
	maxRetentionTime time.Duration
	tag              string
}

// DefaultMaxRetentionTime is how long an entry may sit in a queue before
// it is treated as expired and dropped instead of replayed.
const DefaultMaxRetentionTime = 7 * 24 * time.Hour

// New constructs a Queue named name backed by store. It registers name
// with the configured NameRegistry (DefaultRegistry unless overridden via
// WithRegistry), returning a *Error (ErrCodeDuplicateQueueName) if the name
// is already taken.
//
// If the configured SyncTrigger reports Available() == true, the queue
// subscribes its onSync handler to fire on its sync tag. Otherwise it runs
// onSync synchronously right away (cold-start replay), since no background
// mechanism exists to invoke it later.
func New(name string, store *Store, opts ...Option) (*Queue, error) {
	q := &Queue{
		name:             name,
		store:            store,
		trigger:          NoopTrigger{},
		clock:            clock.SystemClock{},
		logger:           slog.Default(),
		registry:         DefaultRegistry,
		maxRetentionTime: DefaultMaxRetentionTime,
		tag:              "replayq:" + name,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.fetcher == nil {
		q.fetcher = NewHTTPFetcher(nil)
	}
	if q.onSync == nil {
		q.onSync = func(ctx context.Context, q *Queue) error {
			return q.ReplayRequests(ctx)
		}
	}

	if err := q.registry.Register(name); err != nil {
		return nil, err
	}

	if q.trigger.Available() {
		q.trigger.Subscribe(q.tag, func(ctx context.Context) error {
			return q.onSync(ctx, q)
		})
	} else {
		if err := q.onSync(ctx0, q); err != nil {
			q.logger.Warn("cold-start replay failed", "queue", name, "error", err)
		}
	}

	return q, nil
}

// ctx0 is the background context used for the cold-start replay performed
// synchronously inside New, which has no caller-supplied context to use.
var ctx0 = context.Background()

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// Close releases name back to the registry, allowing it to be reused.
func (q *Queue) Close() {
	q.registry.Release(q.name)
}

// PushOptions is the entry object passed to PushRequest/UnshiftRequest: a
// request plus optional metadata and an override timestamp.
type PushOptions struct {
	Request   *http.Request
	Metadata  map[string]string
	Timestamp time.Time
}

// PushRequest serializes opts.Request and appends it to the end of the
// queue, then requests a sync. opts must not be nil and opts.Request must
// not be nil.
func (q *Queue) PushRequest(ctx context.Context, opts *PushOptions) error {
	return q.enqueue(ctx, opts, true)
}

// UnshiftRequest serializes opts.Request and inserts it at the front of
// the queue, then requests a sync. opts must not be nil and opts.Request
// must not be nil.
func (q *Queue) UnshiftRequest(ctx context.Context, opts *PushOptions) error {
	return q.enqueue(ctx, opts, false)
}

func (q *Queue) enqueue(ctx context.Context, opts *PushOptions, atEnd bool) error {
	if opts == nil {
		return newEntryRequiredError(q.name)
	}
	if opts.Request == nil {
		return newRequestRequiredError(q.name)
	}

	rec, err := httpreq.FromRequest(opts.Request)
	if err != nil {
		return newStoreError(q.name, err)
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = q.clock.Now()
	}

	entry := Entry{
		Request:   rec,
		Timestamp: ts,
		Metadata:  opts.Metadata,
	}

	if atEnd {
		_, err = q.store.AddLast(ctx, q.name, entry)
	} else {
		_, err = q.store.AddFirst(ctx, q.name, entry)
	}
	if err != nil {
		return err
	}

	q.registerSync(ctx)
	return nil
}

// ShiftRequest removes and returns the front entry's request, or
// (nil, false, nil) if the queue is empty.
func (q *Queue) ShiftRequest(ctx context.Context) (*http.Request, bool, error) {
	e, ok, err := q.store.PopFirst(ctx, q.name)
	if err != nil || !ok {
		return nil, ok, err
	}
	req, err := e.Request.ToRequest()
	if err != nil {
		return nil, false, newStoreError(q.name, err)
	}
	return req, true, nil
}

// PopRequest removes and returns the back entry's request, or
// (nil, false, nil) if the queue is empty.
func (q *Queue) PopRequest(ctx context.Context) (*http.Request, bool, error) {
	e, ok, err := q.store.PopLast(ctx, q.name)
	if err != nil || !ok {
		return nil, ok, err
	}
	req, err := e.Request.ToRequest()
	if err != nil {
		return nil, false, newStoreError(q.name, err)
	}
	return req, true, nil
}

// RegisterSync asks the configured SyncTrigger to fire this queue's tag.
// Per the source system's behavior, registration failures are swallowed:
// they are logged but never returned to the caller, since a failed
// registration here is recovered by the next successful push's attempt, or
// by the eventual cold-start replay on the next process start.
func (q *Queue) RegisterSync(ctx context.Context) {
	q.registerSync(ctx)
}

func (q *Queue) registerSync(ctx context.Context) {
	if !q.trigger.Available() {
		return
	}
	if err := q.trigger.Register(ctx, q.tag); err != nil {
		q.logger.Warn("registerSync failed", "queue", q.name, "tag", q.tag, "error", err)
	}
}

// ReplayRequests replays every entry in the queue, oldest first. For each
// entry: pop it, prune it if it has exceeded maxRetentionTime, otherwise
// fetch it. A fetch that resolves — any response, including a 5xx — counts
// as delivered and the entry stays discarded; only a fetch that rejects
// (a transport-level error, never a resolved response) is a failure. On
// that failure, the failed entry is re-added at the front of the queue,
// ahead of the entries that were never popped (which keep their original
// order), and ReplayRequests returns a *Error(ErrCodeReplayFailed) —
// matching the "stop on first failure" semantics of the source system.
//
// Because each entry is deleted by PopFirst before its fetch is issued, a
// crash after the pop and before the fetch completes (or before a failed
// entry is re-added) loses that single entry rather than replaying it; this
// is an accepted at-most-once edge rather than exactly-once delivery.
func (q *Queue) ReplayRequests(ctx context.Context) error {
	runID := uuid.Must(uuid.NewV7()).String()
	q.logger.Info("replay starting", "queue", q.name, "run_id", runID)

	var replayedCount int
	for {
		e, ok, err := q.store.PopFirst(ctx, q.name)
		if err != nil {
			return newStoreError(q.name, err)
		}
		if !ok {
			break
		}

		if q.expired(e) {
			q.logger.Info("dropping expired entry", "queue", q.name, "run_id", runID, "entry_id", e.ID)
			continue
		}

		req, err := e.Request.ToRequest()
		if err != nil {
			return newStoreError(q.name, err)
		}
		req = req.WithContext(ctx)

		resp, fetchErr := q.fetcher.Do(req)
		if fetchErr != nil {
			return q.failReplay(ctx, e, runID, fetchErr)
		}
		resp.Body.Close()

		replayedCount++
	}

	q.logger.Info("replay finished", "queue", q.name, "run_id", runID, "replayed", replayedCount)
	return nil
}

// failReplay re-adds e to the front of the queue (so the remaining entries,
// which were never popped, stay behind it in original order) and returns a
// ReplayFailed error.
func (q *Queue) failReplay(ctx context.Context, e Entry, runID string, cause error) error {
	q.logger.Error("replay failed, re-queueing", "queue", q.name, "run_id", runID, "entry_id", e.ID, "error", cause)
	if _, err := q.store.AddFirst(ctx, q.name, Entry{
		Request:   e.Request,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	}); err != nil {
		return newStoreError(q.name, err)
	}
	return newReplayFailedError(q.name, e.ID, cause)
}

func (q *Queue) expired(e Entry) bool {
	if q.maxRetentionTime <= 0 {
		return false
	}
	return q.clock.Now().Sub(e.Timestamp) > q.maxRetentionTime
}
