package hub

import (
	"context"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/doublecloud/hubwriter/pkg/bulk/elastic"
	"github.com/doublecloud/hubwriter/pkg/bulk/marklogic"
	"github.com/doublecloud/hubwriter/pkg/bulk/mongo"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/doublecloud/hubwriter/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DataSource is the entry point of the write path: it turns options into a JobWriter.
type DataSource struct {
	logger   *zap.Logger
	registry prometheus.Registerer
	service  bulk.Service
}

type DataSourceOpt func(*DataSource)

// WithService makes every job write through service instead of opening a connection per job.
// The caller keeps ownership of service.
func WithService(service bulk.Service) DataSourceOpt {
	return func(d *DataSource) {
		d.service = service
	}
}

func WithRegistry(registry prometheus.Registerer) DataSourceOpt {
	return func(d *DataSource) {
		d.registry = registry
	}
}

func NewDataSource(logger *zap.Logger, opts ...DataSourceOpt) *DataSource {
	d := &DataSource{
		logger:   logger,
		registry: nil,
		service:  nil,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// CreateWriter validates options and connects to the configured backend.
func (d *DataSource) CreateWriter(ctx context.Context, writeUUID string, schema *abstract.TableSchema, rawOptions map[string]string) (*JobWriter, error) {
	options := NewOptions(rawOptions)
	if _, err := options.BatchSize(); err != nil {
		return nil, err
	}
	logger := d.logger.With(zap.String("write_uuid", writeUUID))

	service, owned := d.service, false
	if service == nil {
		var err error
		service, err = openService(ctx, options, logger)
		if err != nil {
			return nil, err
		}
		owned = true
	}
	logger.Info("Created job writer", zap.Strings("columns", schema.ColumnNames()))
	return &JobWriter{
		writeUUID:   writeUUID,
		schema:      schema,
		options:     options,
		service:     service,
		ownsService: owned,
		logger:      logger,
		stats:       stats.NewSinkerStats(d.registry),
	}, nil
}

func openService(ctx context.Context, options Options, logger *zap.Logger) (bulk.Service, error) {
	backend, err := options.Backend()
	if err != nil {
		return nil, err
	}
	var service bulk.Service
	switch backend {
	case BackendMarkLogic:
		cfg, err := options.MarkLogicConfig()
		if err != nil {
			return nil, err
		}
		service, err = marklogic.NewService(cfg, logger)
		if err != nil {
			return nil, errors.CategorizedErrorf(categories.Connection, "Unable to connect to MarkLogic at %s, cause: %w", cfg.BaseURL(), err)
		}
	case BackendMongo:
		cfg, err := options.MongoConfig()
		if err != nil {
			return nil, err
		}
		service, err = mongo.NewService(ctx, cfg, logger)
		if err != nil {
			return nil, errors.CategorizedErrorf(categories.Connection, "Unable to connect to MongoDB, cause: %w", err)
		}
	case BackendElastic:
		cfg, err := options.ElasticConfig()
		if err != nil {
			return nil, err
		}
		service, err = elastic.NewService(cfg, logger)
		if err != nil {
			return nil, errors.CategorizedErrorf(categories.Connection, "Unable to connect to Elasticsearch, cause: %w", err)
		}
	}
	logger.Info("Opened bulk service", zap.String("backend", string(backend)))
	return service, nil
}

// JobWriter is shared by every partition of one write job.
type JobWriter struct {
	writeUUID   string
	schema      *abstract.TableSchema
	options     Options
	service     bulk.Service
	ownsService bool
	logger      *zap.Logger
	stats       *stats.SinkerStats
}

var _ abstract.JobWriter = (*JobWriter)(nil)

func (j *JobWriter) CreateWriterFactory() abstract.DataWriterFactory {
	return &WriterFactory{job: j}
}

func (j *JobWriter) Commit(_ context.Context, messages []abstract.CommitMessage) error {
	j.logger.Info("Write job committed", zap.Int("partitions", len(messages)))
	return nil
}

// Abort does not compensate: documents written by successful partitions stay at the destination.
func (j *JobWriter) Abort(_ context.Context, messages []abstract.CommitMessage) error {
	j.logger.Warn("Write job aborted, destination may be partially written", zap.Int("committed_partitions", len(messages)))
	return nil
}

func (j *JobWriter) Close() error {
	if !j.ownsService {
		return nil
	}
	if err := j.service.Close(); err != nil {
		return errors.CategorizedErrorf(categories.Connection, "Unable to close bulk service, cause: %w", err)
	}
	return nil
}

func (j *JobWriter) Stats() *stats.SinkerStats {
	return j.stats
}

func (j *JobWriter) WriteUUID() string {
	return j.writeUUID
}

// WriterFactory creates a DataWriter per partition attempt.
type WriterFactory struct {
	job *JobWriter
}

var _ abstract.DataWriterFactory = (*WriterFactory)(nil)

func (f *WriterFactory) CreateDataWriter(ctx context.Context, partitionID int, taskID int64, epochID int64) (abstract.DataWriter, error) {
	logger := f.job.logger.With(
		zap.Int("partition_id", partitionID),
		zap.Int64("task_id", taskID),
		zap.Int64("epoch_id", epochID),
	)
	writer, err := NewDataWriter(ctx, f.job.service, f.job.schema, f.job.options, logger, f.job.stats)
	if err != nil {
		return nil, err
	}
	return writer, nil
}
