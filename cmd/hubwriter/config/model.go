package config

import (
	"github.com/doublecloud/hubwriter/pkg/abstract"
	"golang.org/x/xerrors"
)

// WriteJobYamlView is the on-disk shape of a write job.
type WriteJobYamlView struct {
	Options map[string]interface{} `yaml:"options"`
	Schema  []ColumnYamlView       `yaml:"schema"`
}

type ColumnYamlView struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable"`
}

// WriteJob is a parsed write job: writer options and the schema of input rows.
type WriteJob struct {
	Options map[string]string
	Schema  *abstract.TableSchema
}

func (v WriteJobYamlView) TableSchema() (*abstract.TableSchema, error) {
	if len(v.Schema) == 0 {
		return nil, xerrors.New("schema has no columns")
	}
	seen := make(map[string]bool, len(v.Schema))
	columns := make([]abstract.ColSchema, 0, len(v.Schema))
	for i, col := range v.Schema {
		if col.Name == "" {
			return nil, xerrors.Errorf("column #%d has no name", i)
		}
		if seen[col.Name] {
			return nil, xerrors.Errorf("column %q is declared twice", col.Name)
		}
		seen[col.Name] = true
		dataType, err := abstract.ParseDataType(col.Type)
		if err != nil {
			return nil, xerrors.Errorf("unable to parse type of column %q: %w", col.Name, err)
		}
		nullable := true
		if col.Nullable != nil {
			nullable = *col.Nullable
		}
		columns = append(columns, abstract.NewColSchema(col.Name, dataType, nullable))
	}
	return abstract.NewTableSchema(columns), nil
}
