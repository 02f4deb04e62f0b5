package hub

import (
	"context"
	"time"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/doublecloud/hubwriter/pkg/serializer"
	"github.com/doublecloud/hubwriter/pkg/stats"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// DataWriter batches serialized rows of one partition and hands each full batch to a bulk session.
// It is not safe for concurrent use.
type DataWriter struct {
	logger     *zap.Logger
	stats      *stats.SinkerStats
	serializer serializer.RowSerializer
	caller     bulk.Caller
	params     *EndpointParams
	batchSize  int
	pending    [][]byte
}

var _ abstract.DataWriter = (*DataWriter)(nil)

// NewDataWriter resolves endpoint parameters, loads the endpoint declaration and opens a bulk session.
// A nil sinkStats disables metrics.
func NewDataWriter(
	ctx context.Context,
	service bulk.Service,
	schema *abstract.TableSchema,
	options Options,
	logger *zap.Logger,
	sinkStats *stats.SinkerStats,
) (*DataWriter, error) {
	batchSize, err := options.BatchSize()
	if err != nil {
		return nil, err
	}
	params, err := ResolveEndpointParams(options, logger)
	if err != nil {
		return nil, err
	}
	declaration, err := service.Declaration(ctx, params.APIPath)
	if err != nil {
		return nil, errors.CategorizedErrorf(categories.Connection, "Unable to load endpoint %s, cause: %w", params.APIPath, err)
	}
	caller, err := service.BulkInputCaller(ctx, declaration, params.EndpointState, params.WorkUnit)
	if err != nil {
		return nil, errors.CategorizedErrorf(categories.Connection, "Unable to open bulk session on %s, cause: %w", declaration.Endpoint, err)
	}
	if sinkStats == nil {
		sinkStats = stats.NewSinkerStats(nil)
	}
	return &DataWriter{
		logger:     logger,
		stats:      sinkStats,
		serializer: serializer.NewJSONRowSerializer(schema),
		caller:     caller,
		params:     params,
		batchSize:  batchSize,
		pending:    make([][]byte, 0, batchSize),
	}, nil
}

func (w *DataWriter) Write(ctx context.Context, row abstract.Row) error {
	doc, err := w.serializer.Serialize(row)
	if err != nil {
		return xerrors.Errorf("unable to serialize row: %w", err)
	}
	w.pending = append(w.pending, doc)
	w.stats.Inflight.Inc()
	if len(w.pending) >= w.batchSize {
		return w.flush(ctx)
	}
	return nil
}

// Commit flushes what is pending. There is nothing to report to the job, so the message is nil.
func (w *DataWriter) Commit(ctx context.Context) (abstract.CommitMessage, error) {
	if len(w.pending) > 0 {
		if err := w.flush(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Abort always fails: documents already handed to the endpoint cannot be taken back.
func (w *DataWriter) Abort(_ context.Context) error {
	return errors.CategorizedErrorf(categories.Unsupported, "Transaction cannot be aborted")
}

// Close drops pending documents without sending them.
func (w *DataWriter) Close() error {
	if len(w.pending) > 0 {
		w.logger.Warn("Closing writer with unflushed documents", zap.Int("count", len(w.pending)))
		w.stats.Inflight.Sub(float64(len(w.pending)))
		w.pending = w.pending[:0]
	}
	return nil
}

// Pending returns the number of buffered documents.
func (w *DataWriter) Pending() int {
	return len(w.pending)
}

func (w *DataWriter) Params() *EndpointParams {
	return w.params
}

func (w *DataWriter) flush(ctx context.Context) error {
	startFlush := time.Now()
	count := len(w.pending)
	for _, doc := range w.pending {
		if err := w.caller.Accept(ctx, doc); err != nil {
			w.stats.FlushErrors.Inc()
			return errors.CategorizedErrorf(categories.RemoteCall, "Unable to submit %d documents to %s, cause: %w", count, w.params.APIPath, err)
		}
	}
	if err := w.caller.AwaitCompletion(ctx); err != nil {
		w.stats.FlushErrors.Inc()
		return errors.CategorizedErrorf(categories.RemoteCall, "Bulk call to %s failed, cause: %w", w.params.APIPath, err)
	}
	w.pending = w.pending[:0]
	w.stats.Inflight.Sub(float64(count))
	w.stats.Documents.Add(float64(count))
	w.stats.Batches.Inc()
	w.stats.Elapsed.Observe(time.Since(startFlush).Seconds())
	w.logger.Debug("Flushed batch", zap.Int("count", count), zap.Duration("elapsed", time.Since(startFlush)))
	return nil
}
