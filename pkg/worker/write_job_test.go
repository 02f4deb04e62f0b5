package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/bulk/memory"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/doublecloud/hubwriter/pkg/providers/hub"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSchema() *abstract.TableSchema {
	return abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("id", abstract.Primitive(abstract.TypeLong), false),
		abstract.NewColSchema("name", abstract.Primitive(abstract.TypeString), true),
	})
}

func makePartitions(count, rowsPerPartition int) [][]abstract.Row {
	partitions := make([][]abstract.Row, count)
	for p := range partitions {
		for i := 0; i < rowsPerPartition; i++ {
			id := p*rowsPerPartition + i
			partitions[p] = append(partitions[p], abstract.Row{int64(id), fmt.Sprintf("row-%d", id)})
		}
	}
	return partitions
}

func newJob(t *testing.T, service *memory.Service, logger *zap.Logger, options map[string]string) abstract.JobWriter {
	t.Helper()
	job, err := hub.NewDataSource(logger, hub.WithService(service)).CreateWriter(context.Background(), "job", testSchema(), options)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, job.Close()) })
	return job
}

func TestRunWriteJob(t *testing.T) {
	service := memory.NewService()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	job := newJob(t, service, logger, map[string]string{hub.BatchSizeKey: "4", hub.URIPrefixKey: "/rows/"})

	result, err := RunWriteJob(context.Background(), job, makePartitions(3, 10), logger)
	require.NoError(t, err)
	require.Equal(t, 3, result.Partitions)
	require.Equal(t, int64(30), result.Rows)
	require.Len(t, service.DocumentsWithPrefix("/rows/"), 30)
	require.Equal(t, 1, logs.FilterMessage("Write job committed").Len())
}

func TestRunWriteJobWithoutPartitions(t *testing.T) {
	service := memory.NewService()
	job := newJob(t, service, zap.NewNop(), nil)

	result, err := RunWriteJob(context.Background(), job, nil, zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, result.Rows)
	require.Zero(t, service.Calls())
}

func TestRunWriteJobAbortsOnFailure(t *testing.T) {
	service := memory.NewService()
	cause := xerrors.New("endpoint unavailable")
	service.FailCalls(cause)
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	job := newJob(t, service, logger, map[string]string{hub.BatchSizeKey: "2"})

	_, err := RunWriteJob(context.Background(), job, makePartitions(2, 5), logger)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, cause))
	require.True(t, errors.IsCategory(err, categories.RemoteCall))
	require.Empty(t, service.Documents())

	require.GreaterOrEqual(t, logs.FilterMessage("Unable to abort partition writer").Len(), 1)
	require.Equal(t, 1, logs.FilterMessageSnippet("partially written").Len())
}

func TestRunWriteJobFailsOnBadRow(t *testing.T) {
	service := memory.NewService()
	job := newJob(t, service, zap.NewNop(), nil)

	partitions := [][]abstract.Row{{{int64(1), "ok"}, {nil, "missing id"}}}
	_, err := RunWriteJob(context.Background(), job, partitions, zap.NewNop())
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, categories.Serialization))
	require.Contains(t, err.Error(), "row 1 of partition 0")
}
