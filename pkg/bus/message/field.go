package message

import (
	"fmt"
	"strconv"
)

// FieldType identifies the scalar type carried by a Field.
type FieldType int

const (
	FieldTypeBool FieldType = iota
	FieldTypeI8
	FieldTypeI16
	FieldTypeI32
	FieldTypeI64
	FieldTypeU8
	FieldTypeU16
	FieldTypeU32
	FieldTypeU64
	FieldTypeF32
	FieldTypeF64
	FieldTypeString
	FieldTypeBinary
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeBool:
		return "BOOL"
	case FieldTypeI8:
		return "I8"
	case FieldTypeI16:
		return "I16"
	case FieldTypeI32:
		return "I32"
	case FieldTypeI64:
		return "I64"
	case FieldTypeU8:
		return "U8"
	case FieldTypeU16:
		return "U16"
	case FieldTypeU32:
		return "U32"
	case FieldTypeU64:
		return "U64"
	case FieldTypeF32:
		return "F32"
	case FieldTypeF64:
		return "F64"
	case FieldTypeString:
		return "STRING"
	case FieldTypeBinary:
		return "BIN"
	default:
		return "UNKNOWN"
	}
}

// Field is a single named, typed value carried by a Message. Like GMSEC
// fields, a Field may be flagged as a "header" field. The flag is carried
// on the Field only: the codecs emit fields in insertion order, and no
// component treats header fields differently from body fields.
type Field struct {
	Name   string
	Type   FieldType
	Value  interface{}
	Header bool
}

func NewBooleanField(name string, v bool) *Field   { return &Field{Name: name, Type: FieldTypeBool, Value: v} }
func NewI8Field(name string, v int8) *Field         { return &Field{Name: name, Type: FieldTypeI8, Value: v} }
func NewI16Field(name string, v int16) *Field       { return &Field{Name: name, Type: FieldTypeI16, Value: v} }
func NewI32Field(name string, v int32) *Field       { return &Field{Name: name, Type: FieldTypeI32, Value: v} }
func NewI64Field(name string, v int64) *Field       { return &Field{Name: name, Type: FieldTypeI64, Value: v} }
func NewU8Field(name string, v uint8) *Field        { return &Field{Name: name, Type: FieldTypeU8, Value: v} }
func NewU16Field(name string, v uint16) *Field      { return &Field{Name: name, Type: FieldTypeU16, Value: v} }
func NewU32Field(name string, v uint32) *Field      { return &Field{Name: name, Type: FieldTypeU32, Value: v} }
func NewU64Field(name string, v uint64) *Field      { return &Field{Name: name, Type: FieldTypeU64, Value: v} }
func NewF32Field(name string, v float32) *Field     { return &Field{Name: name, Type: FieldTypeF32, Value: v} }
func NewF64Field(name string, v float64) *Field     { return &Field{Name: name, Type: FieldTypeF64, Value: v} }
func NewStringField(name string, v string) *Field   { return &Field{Name: name, Type: FieldTypeString, Value: v} }
func NewBinaryField(name string, v []byte) *Field   { return &Field{Name: name, Type: FieldTypeBinary, Value: v} }

// WithHeader marks the field as a header field and returns it for chaining.
func (f *Field) WithHeader(header bool) *Field {
	f.Header = header
	return f
}

// StringValue coerces the field's value to its string representation,
// mirroring GMSEC's getStringValue() contract.
func (f *Field) StringValue() string {
	switch f.Type {
	case FieldTypeBinary:
		return fmt.Sprintf("%x", f.Value.([]byte))
	default:
		return fmt.Sprintf("%v", f.Value)
	}
}

// I64Value coerces the field's value to an int64, mirroring
// getI64Value(); returns an error if the underlying value cannot be
// represented (e.g. a non-numeric string or a binary blob).
func (f *Field) I64Value() (int64, error) {
	switch f.Type {
	case FieldTypeBool:
		if f.Value.(bool) {
			return 1, nil
		}
		return 0, nil
	case FieldTypeI8:
		return int64(f.Value.(int8)), nil
	case FieldTypeI16:
		return int64(f.Value.(int16)), nil
	case FieldTypeI32:
		return int64(f.Value.(int32)), nil
	case FieldTypeI64:
		return f.Value.(int64), nil
	case FieldTypeU8:
		return int64(f.Value.(uint8)), nil
	case FieldTypeU16:
		return int64(f.Value.(uint16)), nil
	case FieldTypeU32:
		return int64(f.Value.(uint32)), nil
	case FieldTypeU64:
		return int64(f.Value.(uint64)), nil
	case FieldTypeF32:
		return int64(f.Value.(float32)), nil
	case FieldTypeF64:
		return int64(f.Value.(float64)), nil
	case FieldTypeString:
		return strconv.ParseInt(f.Value.(string), 10, 64)
	default:
		return 0, fmt.Errorf("field %q of type %s cannot be converted to an integer", f.Name, f.Type)
	}
}

// F64Value coerces the field's value to a float64.
func (f *Field) F64Value() (float64, error) {
	switch f.Type {
	case FieldTypeF32:
		return float64(f.Value.(float32)), nil
	case FieldTypeF64:
		return f.Value.(float64), nil
	case FieldTypeString:
		return strconv.ParseFloat(f.Value.(string), 64)
	default:
		i, err := f.I64Value()
		return float64(i), err
	}
}

// AddFieldValue builds a Field by coercing a generic Go value into the
// narrowest matching GMSEC field type, mirroring Message::addField's
// overload resolution in the original API.
func AddFieldValue(name string, value interface{}) *Field {
	switch v := value.(type) {
	case bool:
		return NewBooleanField(name, v)
	case int8:
		return NewI8Field(name, v)
	case int16:
		return NewI16Field(name, v)
	case int32:
		return NewI32Field(name, v)
	case int:
		return NewI32Field(name, int32(v))
	case int64:
		return NewI64Field(name, v)
	case uint8:
		return NewU8Field(name, v)
	case uint16:
		return NewU16Field(name, v)
	case uint32:
		return NewU32Field(name, v)
	case uint64:
		return NewU64Field(name, v)
	case float32:
		return NewF32Field(name, v)
	case float64:
		return NewF64Field(name, v)
	case string:
		return NewStringField(name, v)
	case []byte:
		return NewBinaryField(name, v)
	default:
		return NewStringField(name, fmt.Sprintf("%v", v))
	}
}
