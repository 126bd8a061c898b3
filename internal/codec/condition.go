package codec

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
)

// DecodeCondition decodes one condition object.
func (c *Codec) DecodeCondition(doc *gabs.Container) (narrative.Condition, error) {
	cond, err := create(c.conditions, doc)
	if err != nil {
		return nil, err
	}

	switch t := cond.(type) {
	case *narrative.CheckInt:
		err = decodeFields(doc, t, []string{"variable", "operand", "value"})
	case *narrative.CheckDouble:
		err = decodeFields(doc, t, []string{"variable", "operand", "value"})
	case *narrative.CheckBool:
		err = decodeFields(doc, t, []string{"variable", "value"})
	case *narrative.CheckString:
		err = decodeFields(doc, t, []string{"variable", "value"})
	case *narrative.HasItem:
		err = decodeFields(doc, t, []string{"itemId"}, "service")
	default:
		err = &DecodeError{Field: TypeKey, Err: fmt.Errorf("%w: no schema for %T", ErrUnknownTypeKind, cond)}
	}
	if err != nil {
		return nil, err
	}
	return cond, nil
}

// decodeFields checks the required keys and populates them along with the
// optional ones.
func decodeFields(doc *gabs.Container, target any, required []string, optional ...string) error {
	if err := document.RequireNonNull(doc, required...); err != nil {
		return err
	}
	return populate(doc, target, append(required, optional...)...)
}

// EncodeCondition renders cond with its "type" discriminator.
func (c *Codec) EncodeCondition(cond narrative.Condition) (*gabs.Container, error) {
	if cond == nil {
		return nil, fmt.Errorf("encode condition: nil condition")
	}
	out := map[string]any{TypeKey: string(cond.Kind())}

	switch t := cond.(type) {
	case *narrative.CheckInt:
		out["variable"] = t.Variable
		out["operand"] = string(t.Operand)
		out["value"] = t.Value
	case *narrative.CheckDouble:
		out["variable"] = t.Variable
		out["operand"] = string(t.Operand)
		out["value"] = t.Value
	case *narrative.CheckBool:
		out["variable"] = t.Variable
		out["value"] = t.Value
	case *narrative.CheckString:
		out["variable"] = t.Variable
		out["value"] = t.Value
	case *narrative.HasItem:
		out["itemId"] = t.ItemID
		out["service"] = t.Service
	default:
		return nil, fmt.Errorf("encode condition: %w: %T", ErrUnknownTypeKind, cond)
	}

	if !c.conditions.Has(string(cond.Kind())) {
		return nil, fmt.Errorf("encode condition: %w: condition %q", ErrUnknownTypeKind, string(cond.Kind()))
	}
	return gabs.Wrap(out), nil
}
