package codec

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// DecodeAction decodes one action object.
func (c *Codec) DecodeAction(doc *gabs.Container) (narrative.Action, error) {
	action, err := create(c.actions, doc)
	if err != nil {
		return nil, err
	}

	switch t := action.(type) {
	case *narrative.SetVariable:
		err = decodeSetVariable(doc, t)
	case *narrative.SetItem:
		err = decodeFields(doc, t, []string{"itemId", "operation"}, "amount", "service")
	default:
		err = &DecodeError{Field: TypeKey, Err: fmt.Errorf("%w: no schema for %T", ErrUnknownTypeKind, action)}
	}
	if err != nil {
		return nil, err
	}
	return action, nil
}

func decodeSetVariable(doc *gabs.Container, a *narrative.SetVariable) error {
	if err := document.RequireNonNull(doc, "variables"); err != nil {
		return err
	}
	if err := populate(doc, a, "scope"); err != nil {
		return err
	}
	scope, err := variables.ParseScope(string(a.Scope))
	if err != nil {
		return &DecodeError{Field: "scope", Err: err}
	}
	vars, err := decodeList(doc, "variables", variables.DecodeVariable)
	if err != nil {
		return err
	}
	a.Scope = scope
	a.Variables = vars
	return nil
}

// EncodeAction renders a with its "type" discriminator.
func (c *Codec) EncodeAction(a narrative.Action) (*gabs.Container, error) {
	if a == nil {
		return nil, fmt.Errorf("encode action: nil action")
	}
	out := map[string]any{TypeKey: string(a.Kind())}

	switch t := a.(type) {
	case *narrative.SetVariable:
		scope := t.Scope
		if scope == "" {
			scope = variables.Local
		}
		vars := make([]any, 0, len(t.Variables))
		for _, v := range t.Variables {
			vars = append(vars, variables.EncodeVariable(v))
		}
		out["scope"] = string(scope)
		out["variables"] = vars
	case *narrative.SetItem:
		out["itemId"] = t.ItemID
		out["operation"] = string(t.Operation)
		out["amount"] = t.Amount
		out["service"] = t.Service
	default:
		return nil, fmt.Errorf("encode action: %w: %T", ErrUnknownTypeKind, a)
	}

	if !c.actions.Has(string(a.Kind())) {
		return nil, fmt.Errorf("encode action: %w: action %q", ErrUnknownTypeKind, string(a.Kind()))
	}
	return gabs.Wrap(out), nil
}
