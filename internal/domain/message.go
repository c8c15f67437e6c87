package domain

import (
	"context"
	"time"
)

// RawMessage is an unprocessed record from the source topic. Commit acknowledges
// the record; it is nil for sources without offsets.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
