package queue

import (
	"time"

	"github.com/replayq/replayq/internal/httpreq"
)

// Entry is one durable record in a queue: a serialized request plus the
// bookkeeping fields needed to replay it in order. ID establishes the
// total order across every queue sharing a Store; within one queue name
// the ID-ordered subset is that queue's FIFO content.
type Entry struct {
	ID        int64
	QueueName string
	Request   httpreq.Record
	Timestamp time.Time
	Metadata  map[string]string
}
