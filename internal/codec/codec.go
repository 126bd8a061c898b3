// Package codec converts story graphs to and from document trees. Every
// polymorphic value carries a "type" discriminator; decoding allocates a
// default instance from the family registry and then populates it from the
// document.
package codec

import (
	"errors"
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/registry"
)

// TypeKey is the discriminator field of every polymorphic object.
const TypeKey = "type"

var (
	ErrMissingDiscriminator   = errors.New("missing type discriminator")
	ErrDeserializationFailure = document.ErrDeserializationFailure
	ErrUnknownTypeKind        = registry.ErrUnknownTypeKind
)

// DecodeError locates a failure inside the decoded document.
type DecodeError = document.Error

// Parse reads a JSON document.
func Parse(data []byte) (*gabs.Container, error) { return document.Parse(data) }

// ParseYAML reads a YAML document into the same tree shape as Parse.
func ParseYAML(data []byte) (*gabs.Container, error) { return document.ParseYAML(data) }

// Marshal renders doc as indented JSON.
func Marshal(doc *gabs.Container) []byte { return document.Marshal(doc) }

// Codec decodes and encodes the node, condition and action families.
type Codec struct {
	nodes      *registry.Registry[narrative.Node]
	conditions *registry.Registry[narrative.Condition]
	actions    *registry.Registry[narrative.Action]

	newGUID func() uuid.UUID
}

// New builds a codec over the given registries.
func New(
	nodes *registry.Registry[narrative.Node],
	conditions *registry.Registry[narrative.Condition],
	actions *registry.Registry[narrative.Action],
) *Codec {
	return &Codec{
		nodes:      nodes,
		conditions: conditions,
		actions:    actions,
		newGUID:    uuid.New,
	}
}

// Default builds a codec over the static type tables.
func Default() *Codec {
	return New(narrative.NodeTypes(), narrative.ConditionTypes(), narrative.ActionTypes())
}

func (c *Codec) NodeTypes() *registry.Registry[narrative.Node]           { return c.nodes }
func (c *Codec) ConditionTypes() *registry.Registry[narrative.Condition] { return c.conditions }
func (c *Codec) ActionTypes() *registry.Registry[narrative.Action]       { return c.actions }

// discriminator reads the type tag of doc.
func discriminator(doc *gabs.Container) (string, error) {
	if _, ok := document.Object(doc); !ok {
		var data any
		if doc != nil {
			data = doc.Data()
		}
		return "", &DecodeError{Err: fmt.Errorf("expected object, got %s", document.KindOf(data))}
	}
	if !doc.Exists(TypeKey) {
		return "", &DecodeError{Field: TypeKey, Err: ErrMissingDiscriminator}
	}
	tag, ok := doc.Search(TypeKey).Data().(string)
	if !ok {
		return "", &DecodeError{Field: TypeKey, Err: fmt.Errorf("expected string, got %s",
			document.KindOf(doc.Search(TypeKey).Data()))}
	}
	return tag, nil
}

// create allocates the default instance bound to doc's tag in r.
func create[T any](r *registry.Registry[T], doc *gabs.Container) (T, error) {
	var zero T
	tag, err := discriminator(doc)
	if err != nil {
		return zero, err
	}
	v, err := r.Create(tag)
	if err != nil {
		return zero, &DecodeError{Field: TypeKey, Err: err}
	}
	return v, nil
}

// populate copies the scalar fields named by keys from doc into target,
// matching the "doc" struct tags. Absent and null keys leave the default.
func populate(doc *gabs.Container, target any, keys ...string) error {
	m, _ := document.Object(doc)
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:    "doc",
			DecodeHook: document.StrictScalars,
			Result:     target,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(map[string]any{key: v}); err != nil {
			return &DecodeError{Field: key, Err: unwrapMapstructure(err)}
		}
	}
	return nil
}

// unwrapMapstructure strips the aggregate wrapper of a single-field error.
func unwrapMapstructure(err error) error {
	var me *mapstructure.Error
	if errors.As(err, &me) && len(me.Errors) == 1 {
		return errors.New(me.Errors[0])
	}
	return err
}

// decodeList decodes every element of the list field key, naming failures
// by index. An absent, null or empty list decodes as nil.
func decodeList[T any](doc *gabs.Container, key string, decode func(*gabs.Container) (T, error)) ([]T, error) {
	items, err := document.List(doc, key)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := decode(item)
		if err != nil {
			return nil, document.WithPath(err, fmt.Sprintf("%s[%d]", key, i))
		}
		out = append(out, v)
	}
	return out, nil
}
