// Package variables implements the typed, scope-aware variable stores that
// story conditions read and story actions write.
package variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
)

var (
	ErrVariableNotFound        = errors.New("variable not found")
	ErrVariableTypeMismatch    = errors.New("variable type mismatch")
	ErrUnsupportedVariableType = errors.New("unsupported variable type")
	ErrUnknownScope            = errors.New("unknown variable scope")
	ErrEmptyName               = errors.New("variable name is empty")
	ErrDuplicateVariable       = errors.New("duplicate variable")

	// ErrDeserializationFailure is shared with the node codec.
	ErrDeserializationFailure = document.ErrDeserializationFailure
)

// DecodeError names the entry and field of a store document that failed.
type DecodeError = document.Error

// Type is the declared type of a variable. It is persisted by name.
type Type string

const (
	Int    Type = "Int"
	Float  Type = "Float"
	Double Type = "Double"
	Bool   Type = "Bool"
	String Type = "String"
)

// Types lists every supported variable type.
func Types() []Type { return []Type{Int, Float, Double, Bool, String} }

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	switch t {
	case Int, Float, Double, Bool, String:
		return true
	}
	return false
}

// ParseType maps a persisted type name to a Type.
func ParseType(name string) (Type, error) {
	t := Type(name)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedVariableType, name)
	}
	return t, nil
}

// TypeOf maps the Go type T to its variable type.
func TypeOf[T any]() (Type, error) {
	var zero T
	switch any(zero).(type) {
	case int:
		return Int, nil
	case float32:
		return Float, nil
	case float64:
		return Double, nil
	case bool:
		return Bool, nil
	case string:
		return String, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnsupportedVariableType, reflect.TypeFor[T]())
}

// Variable is a named, typed value.
type Variable struct {
	Name  string
	Type  Type
	Value any
}

func (v Variable) String() string {
	return fmt.Sprintf("%s %s = %v", v.Type, v.Name, v.Value)
}

// Coerce converts value to the Go representation of t. Document numbers
// (json.Number, any Go integer or float) are accepted for the numeric types;
// a number with a fractional part never becomes an Int.
func Coerce(t Type, value any) (any, error) {
	switch t {
	case Int:
		return toInt(value)
	case Float:
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case Double:
		return toFloat(value)
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch(t, value)
		}
		return b, nil
	case String:
		s, ok := value.(string)
		if !ok {
			return nil, mismatch(t, value)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariableType, string(t))
}

func mismatch(t Type, value any) error {
	return fmt.Errorf("%w: %s cannot hold %s", ErrVariableTypeMismatch, t, document.KindOf(value))
}

func toInt(value any) (any, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, mismatch(Int, value)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, mismatch(Int, value)
		}
		return int(i), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, mismatch(Int, value)
		}
		return int(n), nil
	case float32:
		return toInt(float64(n))
	}
	return nil, mismatch(Int, value)
}

func toFloat(value any) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, mismatch(Double, value)
		}
		return f, nil
	}
	return 0, mismatch(Double, value)
}
