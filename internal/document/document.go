// Package document is the generic, self-describing tree that story graphs and
// variable stores are persisted as. It wraps gabs containers and provides
// the field accessors and error type shared by every decoder.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"gopkg.in/yaml.v3"
)

// ErrDeserializationFailure marks any document that does not match the
// expected schema: wrong shape, wrong scalar type or a missing field.
var ErrDeserializationFailure = errors.New("deserialization failure")

// Error locates a deserialization failure inside a document.
type Error struct {
	Path  string // e.g. "[2].choices[0]"
	Field string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(ErrDeserializationFailure.Error())
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports every *Error as a deserialization failure.
func (e *Error) Is(target error) bool { return target == ErrDeserializationFailure }

// Errorf builds an *Error for field with a formatted cause.
func Errorf(field, format string, args ...any) error {
	return &Error{Field: field, Err: fmt.Errorf(format, args...)}
}

// WithPath prefixes the location of err when it is an *Error, and wraps any
// other error into one.
func WithPath(err error, path string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		cp := *de
		cp.Path = joinPath(path, de.Path)
		return &cp
	}
	return &Error{Path: path, Err: err}
}

func joinPath(prefix, rest string) string {
	switch {
	case prefix == "":
		return rest
	case rest == "":
		return prefix
	case strings.HasPrefix(rest, "["):
		return prefix + rest
	default:
		return prefix + "." + rest
	}
}

// Parse reads a JSON document. Numbers are kept as json.Number so integers
// survive without float rounding.
func Parse(data []byte) (*gabs.Container, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	doc, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return doc, nil
}

// ParseYAML reads a YAML document into the same tree shape Parse produces.
func ParseYAML(data []byte) (*gabs.Container, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Err: err}
	}
	normalized, err := normalizeYAML(raw)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return gabs.Wrap(normalized), nil
}

func normalizeYAML(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			n, err := normalizeYAML(child)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			n, err := normalizeYAML(child)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		for i, child := range t {
			n, err := normalizeYAML(child)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

// Marshal renders doc as indented JSON.
func Marshal(doc *gabs.Container) []byte {
	if doc == nil {
		return []byte("null")
	}
	return doc.EncodeJSON(gabs.EncodeOptIndent("", "  "))
}

// Object returns the map behind doc, or false if doc is not an object.
func Object(doc *gabs.Container) (map[string]any, bool) {
	if doc == nil {
		return nil, false
	}
	m, ok := doc.Data().(map[string]any)
	return m, ok
}

// Array returns the elements of doc, or false if doc is not an array.
func Array(doc *gabs.Container) ([]*gabs.Container, bool) {
	if doc == nil {
		return nil, false
	}
	items, ok := doc.Data().([]any)
	if !ok {
		return nil, false
	}
	out := make([]*gabs.Container, len(items))
	for i, item := range items {
		out[i] = gabs.Wrap(item)
	}
	return out, true
}

// Has reports whether key is present on the object doc, even when null.
func Has(doc *gabs.Container, key string) bool {
	m, ok := Object(doc)
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

// Require fails on the first key missing from doc.
func Require(doc *gabs.Container, keys ...string) error {
	if _, ok := Object(doc); !ok {
		return &Error{Err: fmt.Errorf("expected object, got %s", kindOf(doc))}
	}
	for _, key := range keys {
		if !Has(doc, key) {
			return Errorf(key, "required field is missing")
		}
	}
	return nil
}

// RequireNonNull is Require that also rejects null values.
func RequireNonNull(doc *gabs.Container, keys ...string) error {
	if err := Require(doc, keys...); err != nil {
		return err
	}
	m, _ := Object(doc)
	for _, key := range keys {
		if m[key] == nil {
			return Errorf(key, "required field is null")
		}
	}
	return nil
}

// String reads an optional string field. A null value reads as empty.
func String(doc *gabs.Container, key string) (string, error) {
	m, _ := Object(doc)
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", Errorf(key, "expected string, got %s", kindOf(gabs.Wrap(v)))
	}
	return s, nil
}

// List reads an optional array field. A missing or null field reads as empty.
func List(doc *gabs.Container, key string) ([]*gabs.Container, error) {
	m, _ := Object(doc)
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := Array(gabs.Wrap(v))
	if !ok {
		return nil, Errorf(key, "expected array, got %s", kindOf(gabs.Wrap(v)))
	}
	return items, nil
}

func kindOf(doc *gabs.Container) string {
	if doc == nil {
		return "nothing"
	}
	switch doc.Data().(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, float32, int, int64, int32, uint, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", doc.Data())
	}
}

// KindOf names the JSON shape of v for error messages.
func KindOf(v any) string { return kindOf(gabs.Wrap(v)) }

var jsonNumberType = reflect.TypeOf(json.Number(""))

// StrictScalars is a mapstructure decode hook that refuses to turn numbers
// into strings or fractional numbers into ints.
func StrictScalars(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.String:
		if from == jsonNumberType {
			return nil, errors.New("expected string, got number")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch n := data.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
		case float32:
			if float64(n) != math.Trunc(float64(n)) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
		}
	}
	return data, nil
}
