package frame

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
)

// Kind is the declared type of a frame column.
type Kind int

const (
	KindUnknown Kind = iota
	KindUUID
	KindTime
	KindString
	KindEnum
	KindInt
	KindReal
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindUUID:    "uuid",
	KindTime:    "time",
	KindString:  "string",
	KindEnum:    "enum",
	KindInt:     "int",
	KindReal:    "real",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Numeric reports whether columns of this kind take part in correlation.
func (k Kind) Numeric() bool { return k == KindInt || k == KindReal }

// Encodable reports whether columns of this kind are candidates for indicator encoding.
func (k Kind) Encodable() bool { return k == KindEnum }

// ParseKind maps a kind name (or a common alias) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown", "bad":
		return KindUnknown, nil
	case "uuid":
		return KindUUID, nil
	case "time", "datetime", "timestamp":
		return KindTime, nil
	case "string", "text":
		return KindString, nil
	case "enum", "categorical", "factor":
		return KindEnum, nil
	case "int", "integer":
		return KindInt, nil
	case "real", "numeric", "float", "double":
		return KindReal, nil
	default:
		return KindUnknown, fmt.Errorf("unknown column type %q (use enum|real|int|string|time|uuid|unknown)", s)
	}
}

// arrowType is the physical type a column of this kind is parsed into.
func (k Kind) arrowType() arrow.DataType {
	switch k {
	case KindInt:
		return arrow.PrimitiveTypes.Int64
	case KindReal:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}
