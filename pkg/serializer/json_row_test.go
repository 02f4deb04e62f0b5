package serializer

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/doublecloud/hubwriter/pkg/abstract"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/stretchr/testify/require"
)

var fruitSchema = abstract.NewTableSchema([]abstract.ColSchema{
	abstract.NewColSchema("fruitName", abstract.Primitive(abstract.TypeString), true),
	abstract.NewColSchema("fruitColor", abstract.Primitive(abstract.TypeString), true),
})

func mustType(t *testing.T, raw string) abstract.DataType {
	dt, err := abstract.ParseDataType(raw)
	require.NoError(t, err)
	return dt
}

func TestSerializeKeepsSchemaOrder(t *testing.T) {
	out, err := NewJSONRowSerializer(fruitSchema).Serialize(abstract.Row{"apple", "red"})
	require.NoError(t, err)
	require.Equal(t, `{"fruitName":"apple","fruitColor":"red"}`, string(out))
}

func TestSerializeOmitsNulls(t *testing.T) {
	s := NewJSONRowSerializer(fruitSchema)
	out, err := s.Serialize(abstract.Row{nil, "green"})
	require.NoError(t, err)
	require.Equal(t, `{"fruitColor":"green"}`, string(out))

	out, err = s.Serialize(abstract.Row{nil, nil})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(out))
}

func TestSerializeIsDeterministic(t *testing.T) {
	schema := abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("attrs", mustType(t, "map<string,long>"), true),
	})
	s := NewJSONRowSerializer(schema)
	row := abstract.Row{map[string]any{"b": 2, "a": 1, "c": nil}}
	first, err := s.Serialize(row)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := s.Serialize(row)
		require.NoError(t, err)
		require.Equal(t, string(first), string(next))
	}
	require.Equal(t, `{"attrs":{"a":1,"b":2,"c":null}}`, string(first))
}

func TestSerializeScalarTypes(t *testing.T) {
	schema := abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("flag", abstract.Primitive(abstract.TypeBoolean), false),
		abstract.NewColSchema("small", abstract.Primitive(abstract.TypeShort), false),
		abstract.NewColSchema("big", abstract.Primitive(abstract.TypeLong), false),
		abstract.NewColSchema("ratio", abstract.Primitive(abstract.TypeDouble), false),
		abstract.NewColSchema("price", mustType(t, "decimal(10,2)"), false),
		abstract.NewColSchema("day", abstract.Primitive(abstract.TypeDate), false),
		abstract.NewColSchema("at", abstract.Primitive(abstract.TypeTimestamp), false),
		abstract.NewColSchema("raw", abstract.Primitive(abstract.TypeBinary), false),
	})
	at := time.Date(2020, 5, 17, 10, 30, 0, 123000000, time.FixedZone("UTC+3", 3*60*60))
	out, err := NewJSONRowSerializer(schema).Serialize(abstract.Row{
		true, int16(7), json.Number("9007199254740993"), 1.5, "12.50", at, at, []byte("hi"),
	})
	require.NoError(t, err)
	require.Equal(t,
		`{"flag":true,"small":7,"big":9007199254740993,"ratio":1.5,"price":12.50,"day":"2020-05-17","at":"2020-05-17T07:30:00.123Z","raw":"aGk="}`,
		string(out))
}

func TestSerializeSpecialFloats(t *testing.T) {
	schema := abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("values", mustType(t, "array<double>"), true),
	})
	out, err := NewJSONRowSerializer(schema).Serialize(abstract.Row{[]float64{math.NaN(), math.Inf(1), math.Inf(-1)}})
	require.NoError(t, err)
	require.Equal(t, `{"values":["NaN","Infinity","-Infinity"]}`, string(out))
}

func TestSerializeNestedStruct(t *testing.T) {
	schema := abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("fruit", mustType(t, "struct<name:string,tags:array<string>>"), true),
	})
	s := NewJSONRowSerializer(schema)

	out, err := s.Serialize(abstract.Row{abstract.Row{"kiwi", []string{"green", "fuzzy"}}})
	require.NoError(t, err)
	require.Equal(t, `{"fruit":{"name":"kiwi","tags":["green","fuzzy"]}}`, string(out))

	out, err = s.Serialize(abstract.Row{map[string]any{"name": "fig"}})
	require.NoError(t, err)
	require.Equal(t, `{"fruit":{"name":"fig"}}`, string(out))
}

func TestSerializeErrors(t *testing.T) {
	strict := abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("id", abstract.Primitive(abstract.TypeByte), false),
	})
	s := NewJSONRowSerializer(strict)

	for name, row := range map[string]abstract.Row{
		"overflow":     {300},
		"wrong type":   {"seven"},
		"not nullable": {nil},
		"arity":        {1, 2},
	} {
		_, err := s.Serialize(row)
		require.Error(t, err, name)
		require.True(t, errors.IsCategory(err, categories.Serialization), name)
	}

	prices := NewJSONRowSerializer(abstract.NewTableSchema([]abstract.ColSchema{
		abstract.NewColSchema("price", mustType(t, "decimal(10,2)"), false),
	}))
	for _, literal := range []string{"+1", ".5", "5.", "0x1p-2", "007", "1_0", " 1", "1e999", "Inf", ""} {
		_, err := prices.Serialize(abstract.Row{literal})
		require.Error(t, err, literal)
		require.True(t, errors.IsCategory(err, categories.Serialization), literal)
		_, err = prices.Serialize(abstract.Row{json.Number(literal)})
		require.Error(t, err, literal)
	}
	for _, literal := range []string{"0", "-0.5", "10.25", "1e3", "-1.5E-2"} {
		doc, err := prices.Serialize(abstract.Row{literal})
		require.NoError(t, err, literal)
		require.True(t, json.Valid(doc), string(doc))
		require.Equal(t, `{"price":`+literal+`}`, string(doc))
	}

	_, err := NewJSONRowSerializer(fruitSchema).Serialize(abstract.Row{42, "red"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fruitName")
}
