package abstract

import (
	"strings"

	"golang.org/x/xerrors"
)

type TypeKind string

const (
	TypeString    TypeKind = "string"
	TypeBoolean   TypeKind = "boolean"
	TypeByte      TypeKind = "byte"
	TypeShort     TypeKind = "short"
	TypeInteger   TypeKind = "integer"
	TypeLong      TypeKind = "long"
	TypeFloat     TypeKind = "float"
	TypeDouble    TypeKind = "double"
	TypeDecimal   TypeKind = "decimal"
	TypeDate      TypeKind = "date"
	TypeTimestamp TypeKind = "timestamp"
	TypeBinary    TypeKind = "binary"
	TypeArray     TypeKind = "array"
	TypeMap       TypeKind = "map"
	TypeStruct    TypeKind = "struct"
)

var typeAliases = map[string]TypeKind{
	"string":    TypeString,
	"varchar":   TypeString,
	"boolean":   TypeBoolean,
	"bool":      TypeBoolean,
	"byte":      TypeByte,
	"tinyint":   TypeByte,
	"short":     TypeShort,
	"smallint":  TypeShort,
	"integer":   TypeInteger,
	"int":       TypeInteger,
	"long":      TypeLong,
	"bigint":    TypeLong,
	"float":     TypeFloat,
	"real":      TypeFloat,
	"double":    TypeDouble,
	"decimal":   TypeDecimal,
	"date":      TypeDate,
	"timestamp": TypeTimestamp,
	"binary":    TypeBinary,
}

// DataType describes a column type. Elem is set for arrays and map values,
// Fields for structs. Map keys are always strings.
type DataType struct {
	Kind   TypeKind
	Elem   *DataType
	Fields []ColSchema
}

func (t DataType) String() string {
	switch t.Kind {
	case TypeArray:
		return "array<" + t.Elem.String() + ">"
	case TypeMap:
		return "map<string," + t.Elem.String() + ">"
	case TypeStruct:
		parts := make([]string, 0, len(t.Fields))
		for _, field := range t.Fields {
			parts = append(parts, field.ColumnName+":"+field.DataType.String())
		}
		return "struct<" + strings.Join(parts, ",") + ">"
	default:
		return string(t.Kind)
	}
}

func Primitive(kind TypeKind) DataType {
	return DataType{Kind: kind, Elem: nil, Fields: nil}
}

func ArrayOf(elem DataType) DataType {
	return DataType{Kind: TypeArray, Elem: &elem, Fields: nil}
}

func MapOf(value DataType) DataType {
	return DataType{Kind: TypeMap, Elem: &value, Fields: nil}
}

func StructOf(fields ...ColSchema) DataType {
	return DataType{Kind: TypeStruct, Elem: nil, Fields: fields}
}

type ColSchema struct {
	ColumnName string
	DataType   DataType
	Nullable   bool
}

func NewColSchema(name string, dataType DataType, nullable bool) ColSchema {
	return ColSchema{
		ColumnName: name,
		DataType:   dataType,
		Nullable:   nullable,
	}
}

type TableSchema struct {
	columns []ColSchema
}

func NewTableSchema(columns []ColSchema) *TableSchema {
	return &TableSchema{columns: columns}
}

func (s *TableSchema) Columns() []ColSchema {
	if s == nil {
		return nil
	}
	return s.columns
}

func (s *TableSchema) ColumnNames() []string {
	result := make([]string, 0, len(s.Columns()))
	for _, col := range s.Columns() {
		result = append(result, col.ColumnName)
	}
	return result
}

// ParseDataType parses DDL-like type strings such as "long",
// "array<string>", "map<string,double>" or "struct<name:string,tags:array<string>>".
func ParseDataType(raw string) (DataType, error) {
	p := &typeParser{in: raw, pos: 0}
	result, err := p.parse()
	if err != nil {
		return DataType{}, xerrors.Errorf("unable to parse type %q: %w", raw, err)
	}
	p.skipSpaces()
	if p.pos != len(p.in) {
		return DataType{}, xerrors.Errorf("unable to parse type %q: unexpected trailing input at %d", raw, p.pos)
	}
	return result, nil
}

type typeParser struct {
	in  string
	pos int
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.in) && p.in[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() (string, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		if c == '<' || c == '>' || c == ',' || c == ':' || c == ' ' {
			break
		}
		if c == '(' {
			// precision and scale, e.g. decimal(10,2)
			open := p.pos
			for p.pos < len(p.in) && p.in[p.pos] != ')' {
				p.pos++
			}
			if p.pos >= len(p.in) {
				return "", xerrors.Errorf("unclosed '(' at %d", open)
			}
		}
		p.pos++
	}
	return p.in[start:p.pos], nil
}

func (p *typeParser) expect(c byte) error {
	p.skipSpaces()
	if p.pos >= len(p.in) || p.in[p.pos] != c {
		return xerrors.Errorf("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func (p *typeParser) parse() (DataType, error) {
	name, err := p.ident()
	if err != nil {
		return DataType{}, err
	}
	name = strings.ToLower(name)
	if name == "" {
		return DataType{}, xerrors.Errorf("empty type name at %d", p.pos)
	}
	switch name {
	case string(TypeArray):
		if err := p.expect('<'); err != nil {
			return DataType{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return DataType{}, err
		}
		if err := p.expect('>'); err != nil {
			return DataType{}, err
		}
		return ArrayOf(elem), nil
	case string(TypeMap):
		if err := p.expect('<'); err != nil {
			return DataType{}, err
		}
		key, err := p.parse()
		if err != nil {
			return DataType{}, err
		}
		if key.Kind != TypeString {
			return DataType{}, xerrors.Errorf("map keys must be strings, got %s", key)
		}
		if err := p.expect(','); err != nil {
			return DataType{}, err
		}
		value, err := p.parse()
		if err != nil {
			return DataType{}, err
		}
		if err := p.expect('>'); err != nil {
			return DataType{}, err
		}
		return MapOf(value), nil
	case string(TypeStruct):
		if err := p.expect('<'); err != nil {
			return DataType{}, err
		}
		var fields []ColSchema
		for {
			fieldName, err := p.ident()
			if err != nil {
				return DataType{}, err
			}
			if fieldName == "" {
				return DataType{}, xerrors.Errorf("empty struct field name at %d", p.pos)
			}
			if err := p.expect(':'); err != nil {
				return DataType{}, err
			}
			fieldType, err := p.parse()
			if err != nil {
				return DataType{}, err
			}
			fields = append(fields, NewColSchema(fieldName, fieldType, true))
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
		if err := p.expect('>'); err != nil {
			return DataType{}, err
		}
		return StructOf(fields...), nil
	}
	if idx := strings.IndexByte(name, '('); idx > 0 {
		name = name[:idx]
	}
	kind, ok := typeAliases[name]
	if !ok {
		return DataType{}, xerrors.Errorf("unknown type %q", name)
	}
	return Primitive(kind), nil
}
