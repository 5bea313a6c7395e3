package message

import (
	"fmt"
	"strconv"
)

// coerceNumericField parses a wire STRING payload back into the declared
// numeric field type.
func coerceNumericField(name, typeName, text string) (*Field, error) {
	switch typeName {
	case "I8":
		v, err := strconv.ParseInt(text, 10, 8)
		return NewI8Field(name, int8(v)), wrapParse(name, typeName, err)
	case "I16":
		v, err := strconv.ParseInt(text, 10, 16)
		return NewI16Field(name, int16(v)), wrapParse(name, typeName, err)
	case "I32":
		v, err := strconv.ParseInt(text, 10, 32)
		return NewI32Field(name, int32(v)), wrapParse(name, typeName, err)
	case "I64":
		v, err := strconv.ParseInt(text, 10, 64)
		return NewI64Field(name, v), wrapParse(name, typeName, err)
	case "U8":
		v, err := strconv.ParseUint(text, 10, 8)
		return NewU8Field(name, uint8(v)), wrapParse(name, typeName, err)
	case "U16":
		v, err := strconv.ParseUint(text, 10, 16)
		return NewU16Field(name, uint16(v)), wrapParse(name, typeName, err)
	case "U32":
		v, err := strconv.ParseUint(text, 10, 32)
		return NewU32Field(name, uint32(v)), wrapParse(name, typeName, err)
	case "U64":
		v, err := strconv.ParseUint(text, 10, 64)
		return NewU64Field(name, v), wrapParse(name, typeName, err)
	case "F32":
		v, err := strconv.ParseFloat(text, 32)
		return NewF32Field(name, float32(v)), wrapParse(name, typeName, err)
	case "F64":
		v, err := strconv.ParseFloat(text, 64)
		return NewF64Field(name, v), wrapParse(name, typeName, err)
	default:
		return nil, fmt.Errorf("unsupported numeric field type %q", typeName)
	}
}

func wrapParse(name, typeName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("field %q declared %s: %w", name, typeName, err)
}
