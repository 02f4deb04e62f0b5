package write

import (
	"context"

	"github.com/doublecloud/hubwriter/cmd/hubwriter/config"
	"github.com/doublecloud/hubwriter/internal/logger"
	"github.com/doublecloud/hubwriter/internal/metrics"
	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/providers/hub"
	"github.com/doublecloud/hubwriter/pkg/worker"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type params struct {
	config      string
	input       string
	partitions  int
	metricsAddr string
}

func WriteCommand() *cobra.Command {
	var p params
	writeCommand := &cobra.Command{
		Use:   "write",
		Short: "Write JSON lines into the bulk ingestion endpoint",
		RunE:  write(&p),
	}
	writeCommand.Flags().StringVar(&p.config, "config", "./hubwriter.yaml", "path to yaml file with writer options and schema")
	writeCommand.Flags().StringVar(&p.input, "input", "", "path to a file with one JSON object per line")
	writeCommand.Flags().IntVar(&p.partitions, "partitions", 1, "number of partitions written in parallel")
	writeCommand.Flags().StringVar(&p.metricsAddr, "metrics-addr", "", "address to expose prometheus metrics on, disabled when empty")
	_ = writeCommand.MarkFlagRequired("input")
	return writeCommand
}

func write(p *params) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		job, err := config.WriteJobFromYaml(p.config)
		if err != nil {
			return xerrors.Errorf("unable to load write job: %w", err)
		}
		rows, err := ReadRowsFile(p.input, job.Schema)
		if err != nil {
			return xerrors.Errorf("unable to load rows: %w", err)
		}
		return Run(cmd.Context(), job, Partition(rows, p.partitions), p.metricsAddr, logger.Log)
	}
}

// Run writes partitions with a DataSource opened on the configured backend.
func Run(ctx context.Context, job *config.WriteJob, partitions [][]abstract.Row, metricsAddr string, lgr *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var registry prometheus.Registerer
	if metricsAddr != "" {
		reg := metrics.NewRegistry()
		registry = reg
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, lgr); err != nil {
				lgr.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	source := hub.NewDataSource(lgr, hub.WithRegistry(registry))
	return runWithSource(ctx, source, job, partitions, lgr)
}

func runWithSource(ctx context.Context, source *hub.DataSource, job *config.WriteJob, partitions [][]abstract.Row, lgr *zap.Logger) (err error) {
	jobWriter, err := source.CreateWriter(ctx, uuid.NewString(), job.Schema, job.Options)
	if err != nil {
		return xerrors.Errorf("unable to create job writer: %w", err)
	}
	defer func() {
		if closeErr := jobWriter.Close(); closeErr != nil {
			lgr.Warn("unable to close job writer", zap.Error(closeErr))
		}
	}()

	result, err := worker.RunWriteJob(ctx, jobWriter, partitions, lgr)
	if err != nil {
		return xerrors.Errorf("write job failed: %w", err)
	}
	lgr.Info("Done",
		zap.String("write_uuid", jobWriter.WriteUUID()),
		zap.Int64("rows", result.Rows),
		zap.Duration("elapsed", result.Elapsed))
	return nil
}
