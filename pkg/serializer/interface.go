package serializer

import (
	"github.com/doublecloud/hubwriter/pkg/abstract"
)

type RowSerializer interface {
	Serialize(row abstract.Row) ([]byte, error)
}
