package serializer

import (
	"encoding/base64"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// numberLike is satisfied by json.Number of both encoding/json and goccy/go-json.
type numberLike interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// JSONRowSerializer writes a row as one JSON object with fields in schema order.
// Null fields are omitted, timestamps and dates are rendered in UTC.
type JSONRowSerializer struct {
	schema *abstract.TableSchema
	api    jsoniter.API
}

var _ RowSerializer = (*JSONRowSerializer)(nil)

func NewJSONRowSerializer(schema *abstract.TableSchema) *JSONRowSerializer {
	return &JSONRowSerializer{
		schema: schema,
		api:    jsoniter.ConfigCompatibleWithStandardLibrary,
	}
}

func (s *JSONRowSerializer) Serialize(row abstract.Row) ([]byte, error) {
	columns := s.schema.Columns()
	if len(row) != len(columns) {
		return nil, errors.CategorizedErrorf(categories.Serialization, "row has %d values, schema has %d columns", len(row), len(columns))
	}
	stream := s.api.BorrowStream(nil)
	defer s.api.ReturnStream(stream)

	if err := writeFields(stream, columns, row); err != nil {
		return nil, errors.CategorizedErrorf(categories.Serialization, "unable to serialize row: %w", err)
	}
	if stream.Error != nil {
		return nil, errors.CategorizedErrorf(categories.Serialization, "unable to serialize row: %w", stream.Error)
	}
	buf := stream.Buffer()
	result := make([]byte, len(buf))
	copy(result, buf)
	return result, nil
}

func writeFields(stream *jsoniter.Stream, fields []abstract.ColSchema, values []any) error {
	stream.WriteObjectStart()
	first := true
	for i, field := range fields {
		value := values[i]
		if isNil(value) {
			if !field.Nullable {
				return xerrors.Errorf("column %q is not nullable", field.ColumnName)
			}
			continue
		}
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(field.ColumnName)
		if err := writeValue(stream, field.DataType, value); err != nil {
			return xerrors.Errorf("column %q: %w", field.ColumnName, err)
		}
	}
	stream.WriteObjectEnd()
	return nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func writeValue(stream *jsoniter.Stream, dataType abstract.DataType, value any) error {
	if isNil(value) {
		stream.WriteNil()
		return nil
	}
	switch dataType.Kind {
	case abstract.TypeString:
		switch v := value.(type) {
		case string:
			stream.WriteString(v)
		case []byte:
			stream.WriteString(string(v))
		default:
			return typeMismatch(dataType, value)
		}
	case abstract.TypeBoolean:
		v, ok := value.(bool)
		if !ok {
			return typeMismatch(dataType, value)
		}
		stream.WriteBool(v)
	case abstract.TypeByte, abstract.TypeShort, abstract.TypeInteger, abstract.TypeLong:
		v, err := toInt64(dataType.Kind, value)
		if err != nil {
			return err
		}
		stream.WriteInt64(v)
	case abstract.TypeFloat, abstract.TypeDouble:
		v, err := toFloat64(value)
		if err != nil {
			return xerrors.Errorf("%s: %w", dataType, err)
		}
		writeFloat(stream, dataType.Kind, v)
	case abstract.TypeDecimal:
		raw, err := decimalLiteral(value)
		if err != nil {
			return err
		}
		stream.WriteRaw(raw)
	case abstract.TypeDate:
		v, err := toTime(value, dateLayout)
		if err != nil {
			return err
		}
		stream.WriteString(v.UTC().Format(dateLayout))
	case abstract.TypeTimestamp:
		v, err := toTime(value, time.RFC3339Nano)
		if err != nil {
			return err
		}
		stream.WriteString(v.UTC().Format(timestampLayout))
	case abstract.TypeBinary:
		v, ok := value.([]byte)
		if !ok {
			return typeMismatch(dataType, value)
		}
		stream.WriteString(base64.StdEncoding.EncodeToString(v))
	case abstract.TypeArray:
		return writeArray(stream, dataType, value)
	case abstract.TypeMap:
		return writeMap(stream, dataType, value)
	case abstract.TypeStruct:
		return writeStruct(stream, dataType, value)
	default:
		return xerrors.Errorf("unsupported type %q", dataType.Kind)
	}
	return nil
}

func typeMismatch(dataType abstract.DataType, value any) error {
	return xerrors.Errorf("value of type %T can not be represented as %s", value, dataType)
}

func integerBounds(kind abstract.TypeKind) (int64, int64) {
	switch kind {
	case abstract.TypeByte:
		return math.MinInt8, math.MaxInt8
	case abstract.TypeShort:
		return math.MinInt16, math.MaxInt16
	case abstract.TypeInteger:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func toInt64(kind abstract.TypeKind, value any) (int64, error) {
	var result int64
	switch v := value.(type) {
	case int:
		result = int64(v)
	case int8:
		result = int64(v)
	case int16:
		result = int64(v)
	case int32:
		result = int64(v)
	case int64:
		result = v
	case uint8:
		result = int64(v)
	case uint16:
		result = int64(v)
	case uint32:
		result = int64(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, xerrors.Errorf("value %d overflows %s", v, kind)
		}
		result = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, xerrors.Errorf("value %d overflows %s", v, kind)
		}
		result = int64(v)
	case numberLike:
		parsed, err := v.Int64()
		if err != nil {
			return 0, xerrors.Errorf("value %q is not a %s: %w", v.String(), kind, err)
		}
		result = parsed
	default:
		return 0, typeMismatch(abstract.Primitive(kind), value)
	}
	lo, hi := integerBounds(kind)
	if result < lo || result > hi {
		return 0, xerrors.Errorf("value %d overflows %s", result, kind)
	}
	return result, nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case numberLike:
		parsed, err := v.Float64()
		if err != nil {
			return 0, xerrors.Errorf("value %q is not a number: %w", v.String(), err)
		}
		return parsed, nil
	default:
		return 0, xerrors.Errorf("value of type %T is not a number", value)
	}
}

func writeFloat(stream *jsoniter.Stream, kind abstract.TypeKind, v float64) {
	switch {
	case math.IsNaN(v):
		stream.WriteString("NaN")
	case math.IsInf(v, 1):
		stream.WriteString("Infinity")
	case math.IsInf(v, -1):
		stream.WriteString("-Infinity")
	case kind == abstract.TypeFloat:
		stream.WriteFloat32(float32(v))
	default:
		stream.WriteFloat64(v)
	}
}

func decimalLiteral(value any) (string, error) {
	var literal string
	switch v := value.(type) {
	case string:
		literal = v
	case numberLike:
		literal = v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", xerrors.Errorf("value %v is not a decimal", v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", typeMismatch(abstract.Primitive(abstract.TypeDecimal), value)
	}
	// written raw, so it must already be a JSON number
	if !gjson.Valid(literal) {
		return "", xerrors.Errorf("value %q is not a decimal", literal)
	}
	if res := gjson.Parse(literal); res.Type != gjson.Number || res.Raw != literal {
		return "", xerrors.Errorf("value %q is not a decimal", literal)
	}
	if _, err := strconv.ParseFloat(literal, 64); err != nil {
		return "", xerrors.Errorf("value %q is out of range: %w", literal, err)
	}
	return literal, nil
}

func toTime(value any, layout string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		return *v, nil
	case string:
		parsed, err := time.Parse(layout, v)
		if err != nil {
			return time.Time{}, xerrors.Errorf("unable to parse %q: %w", v, err)
		}
		return parsed, nil
	default:
		return time.Time{}, xerrors.Errorf("value of type %T is not a time", value)
	}
}

func writeArray(stream *jsoniter.Stream, dataType abstract.DataType, value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return typeMismatch(dataType, value)
	}
	stream.WriteArrayStart()
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			stream.WriteMore()
		}
		if err := writeValue(stream, *dataType.Elem, rv.Index(i).Interface()); err != nil {
			return xerrors.Errorf("element %d: %w", i, err)
		}
	}
	stream.WriteArrayEnd()
	return nil
}

func writeMap(stream *jsoniter.Stream, dataType abstract.DataType, value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return typeMismatch(dataType, value)
	}
	keys := make([]string, 0, rv.Len())
	for _, key := range rv.MapKeys() {
		keys = append(keys, key.String())
	}
	sort.Strings(keys)
	stream.WriteObjectStart()
	for i, key := range keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(key)
		item := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if err := writeValue(stream, *dataType.Elem, item.Interface()); err != nil {
			return xerrors.Errorf("key %q: %w", key, err)
		}
	}
	stream.WriteObjectEnd()
	return nil
}

func writeStruct(stream *jsoniter.Stream, dataType abstract.DataType, value any) error {
	switch v := value.(type) {
	case abstract.Row:
		return writeStructValues(stream, dataType, v)
	case []any:
		return writeStructValues(stream, dataType, v)
	case map[string]any:
		values := make([]any, len(dataType.Fields))
		for i, field := range dataType.Fields {
			values[i] = v[field.ColumnName]
		}
		return writeFields(stream, dataType.Fields, values)
	default:
		return typeMismatch(dataType, value)
	}
}

func writeStructValues(stream *jsoniter.Stream, dataType abstract.DataType, values []any) error {
	if len(values) != len(dataType.Fields) {
		return xerrors.Errorf("struct has %d values, type %s has %d fields", len(values), dataType, len(dataType.Fields))
	}
	return writeFields(stream, dataType.Fields, values)
}
