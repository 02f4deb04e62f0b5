package abstract

import (
	"context"
	"io"
)

// CommitMessage is returned by a partition writer on successful commit and handed to the job commit.
type CommitMessage interface{}

// DataWriter is the partition writer contract expected by the host engine.
//
// All its methods are guaranteed to be called non-concurrently (synchronously):
// Write zero or more times, then exactly one of Commit or a failure path.
type DataWriter interface {
	io.Closer
	// Write hands one row to the writer. The row may be buffered until a batch is full.
	Write(ctx context.Context, row Row) error
	// Commit makes every buffered row durable at the destination.
	Commit(ctx context.Context) (CommitMessage, error)
	// Abort is called by the host engine when the partition attempt failed.
	Abort(ctx context.Context) error
}

// DataWriterFactory creates one DataWriter per partition attempt.
type DataWriterFactory interface {
	CreateDataWriter(ctx context.Context, partitionID int, taskID int64, epochID int64) (DataWriter, error)
}

// JobWriter is the job-level side of the write path.
type JobWriter interface {
	io.Closer
	CreateWriterFactory() DataWriterFactory
	Commit(ctx context.Context, messages []CommitMessage) error
	Abort(ctx context.Context, messages []CommitMessage) error
}
