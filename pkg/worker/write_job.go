// Package worker drives a write job the way the host engine does: one writer per partition,
// partitions in parallel, job commit once every partition committed.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type JobResult struct {
	Partitions int
	Rows       int64
	Elapsed    time.Duration
}

// RunWriteJob writes every partition through its own DataWriter. On any failure the job is aborted
// and the first partition error is returned.
func RunWriteJob(ctx context.Context, job abstract.JobWriter, partitions [][]abstract.Row, logger *zap.Logger) (*JobResult, error) {
	startJob := time.Now()
	factory := job.CreateWriterFactory()
	rowsWritten := atomic.NewInt64(0)

	var mu sync.Mutex
	committed := make([]abstract.CommitMessage, 0, len(partitions))

	eg, egCtx := errgroup.WithContext(ctx)
	for partitionID, rows := range partitions {
		partitionID, rows := partitionID, rows
		eg.Go(func() error {
			msg, err := runPartition(egCtx, factory, partitionID, rows, rowsWritten, logger)
			if err != nil {
				return err
			}
			mu.Lock()
			committed = append(committed, msg)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if abortErr := job.Abort(ctx, committed); abortErr != nil {
			err = multierr.Append(err, xerrors.Errorf("unable to abort write job: %w", abortErr))
		}
		return nil, err
	}
	if err := job.Commit(ctx, committed); err != nil {
		return nil, xerrors.Errorf("unable to commit write job: %w", err)
	}

	result := &JobResult{
		Partitions: len(partitions),
		Rows:       rowsWritten.Load(),
		Elapsed:    time.Since(startJob),
	}
	logger.Info("Write job finished",
		zap.Int("partitions", result.Partitions),
		zap.Int64("rows", result.Rows),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func runPartition(
	ctx context.Context,
	factory abstract.DataWriterFactory,
	partitionID int,
	rows []abstract.Row,
	rowsWritten *atomic.Int64,
	logger *zap.Logger,
) (msg abstract.CommitMessage, err error) {
	logger = logger.With(zap.Int("partition_id", partitionID))
	writer, err := factory.CreateDataWriter(ctx, partitionID, int64(partitionID), 0)
	if err != nil {
		return nil, xerrors.Errorf("unable to create writer for partition %d: %w", partitionID, err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			err = multierr.Append(err, xerrors.Errorf("unable to close writer of partition %d: %w", partitionID, closeErr))
		}
	}()

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, abortPartition(ctx, writer, xerrors.Errorf("partition %d cancelled: %w", partitionID, err), logger)
		}
		if err := writer.Write(ctx, row); err != nil {
			return nil, abortPartition(ctx, writer, xerrors.Errorf("unable to write row %d of partition %d: %w", i, partitionID, err), logger)
		}
		rowsWritten.Inc()
	}
	msg, err = writer.Commit(ctx)
	if err != nil {
		return nil, abortPartition(ctx, writer, xerrors.Errorf("unable to commit partition %d: %w", partitionID, err), logger)
	}
	logger.Debug("Partition committed", zap.Int("rows", len(rows)))
	return msg, nil
}

// abortPartition gives the writer a chance to abort, a refusal is only logged.
func abortPartition(ctx context.Context, writer abstract.DataWriter, cause error, logger *zap.Logger) error {
	if err := writer.Abort(ctx); err != nil {
		logger.Warn("Unable to abort partition writer", zap.Error(err), zap.NamedError("cause", cause))
	}
	return cause
}
