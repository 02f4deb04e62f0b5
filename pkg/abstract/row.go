package abstract

// Row is one record of a partition, values are positional and follow the columns of a TableSchema.
// Nested struct values may be given as Row, []any or map[string]any.
type Row []any
