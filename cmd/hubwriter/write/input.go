package write

import (
	"bufio"
	"encoding/base64"
	"io"
	"os"
	"time"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/util"
	"github.com/doublecloud/hubwriter/pkg/util/jsonx"
	"golang.org/x/xerrors"
)

const (
	maxLineSize    = 16 * 1024 * 1024
	lineSampleSize = 64
)

func ReadRowsFile(path string, schema *abstract.TableSchema) ([]abstract.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to open input: %w", err)
	}
	defer f.Close()
	return ReadRows(f, schema)
}

// ReadRows reads one JSON object per line, blank lines are skipped.
func ReadRows(r io.Reader, schema *abstract.TableSchema) ([]abstract.Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var rows []abstract.Row
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := jsonx.Unmarshal(line, &obj); err != nil {
			return nil, xerrors.Errorf("line %d is not a JSON object (%s): %w", lineNo, util.Sample(string(line), lineSampleSize), err)
		}
		row, err := rowFromObject(schema, obj)
		if err != nil {
			return nil, xerrors.Errorf("line %d: %w", lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("unable to read input: %w", err)
	}
	return rows, nil
}

// rowFromObject orders values by schema. Top-level dates, timestamps and binaries arrive as strings.
func rowFromObject(schema *abstract.TableSchema, obj map[string]interface{}) (abstract.Row, error) {
	columns := schema.Columns()
	row := make(abstract.Row, len(columns))
	for i, col := range columns {
		value, ok := obj[col.ColumnName]
		if !ok || value == nil {
			continue
		}
		s, isString := value.(string)
		if !isString {
			row[i] = value
			continue
		}
		switch col.DataType.Kind {
		case abstract.TypeDate:
			parsed, err := time.Parse(time.DateOnly, s)
			if err != nil {
				return nil, xerrors.Errorf("column %q: %w", col.ColumnName, err)
			}
			row[i] = parsed
		case abstract.TypeTimestamp:
			parsed, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, xerrors.Errorf("column %q: %w", col.ColumnName, err)
			}
			row[i] = parsed
		case abstract.TypeBinary:
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, xerrors.Errorf("column %q: %w", col.ColumnName, err)
			}
			row[i] = decoded
		default:
			row[i] = s
		}
	}
	return row, nil
}

// Partition spreads rows round-robin over n partitions.
func Partition(rows []abstract.Row, n int) [][]abstract.Row {
	if n <= 0 {
		n = 1
	}
	if len(rows) < n && len(rows) > 0 {
		n = len(rows)
	}
	partitions := make([][]abstract.Row, n)
	for i, row := range rows {
		partitions[i%n] = append(partitions[i%n], row)
	}
	return partitions
}
