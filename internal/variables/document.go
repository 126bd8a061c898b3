package variables

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
)

// Serialize renders the store as
// {"id": ..., "variables": [{"name", "type", "value"}, ...]} in declaration
// order.
func (s *Store) Serialize() *gabs.Container {
	entries := make([]any, 0, len(s.vars))
	for _, v := range s.vars {
		entries = append(entries, EncodeVariable(v))
	}
	return gabs.Wrap(map[string]any{
		"id":        s.id,
		"variables": entries,
	})
}

// Deserialize replaces the contents of the store with doc. A bare array of
// entries is accepted as well. On failure the store is left untouched.
func (s *Store) Deserialize(doc *gabs.Container) error {
	entries, ok := document.Array(doc)
	if !ok {
		if err := document.RequireNonNull(doc, "variables"); err != nil {
			return err
		}
		list, err := document.List(doc, "variables")
		if err != nil {
			return err
		}
		entries = list
	}

	next := NewStore(s.id)
	for i, entry := range entries {
		v, err := decodeVariable(entry)
		if err != nil {
			return document.WithPath(err, fmt.Sprintf("variables[%d]", i))
		}
		if next.HasVariable(v.Name) {
			return document.WithPath(
				document.Errorf("name", "%w: %q", ErrDuplicateVariable, v.Name),
				fmt.Sprintf("variables[%d]", i))
		}
		next.insert(v)
	}

	s.vars = next.vars
	s.index = next.index
	return nil
}

// DecodeVariable reads one {"name", "type", "value"} entry.
func DecodeVariable(doc *gabs.Container) (Variable, error) {
	return decodeVariable(doc)
}

func decodeVariable(doc *gabs.Container) (Variable, error) {
	if err := document.RequireNonNull(doc, "name", "type", "value"); err != nil {
		return Variable{}, err
	}
	name, err := document.String(doc, "name")
	if err != nil {
		return Variable{}, err
	}
	if name == "" {
		return Variable{}, document.Errorf("name", "%w", ErrEmptyName)
	}
	typeName, err := document.String(doc, "type")
	if err != nil {
		return Variable{}, err
	}
	t, err := ParseType(typeName)
	if err != nil {
		return Variable{}, &document.Error{Field: "type", Err: err}
	}
	value, err := Coerce(t, doc.Search("value").Data())
	if err != nil {
		return Variable{}, &document.Error{Field: "value", Err: err}
	}
	return Variable{Name: name, Type: t, Value: value}, nil
}

// EncodeVariable renders v as a {"name", "type", "value"} entry.
func EncodeVariable(v Variable) map[string]any {
	return map[string]any{
		"name":  v.Name,
		"type":  string(v.Type),
		"value": v.Value,
	}
}

// MarshalJSON encodes the store in its document form.
func (s *Store) MarshalJSON() ([]byte, error) {
	return s.Serialize().MarshalJSON()
}

// UnmarshalJSON decodes the document form produced by MarshalJSON.
func (s *Store) UnmarshalJSON(data []byte) error {
	doc, err := document.Parse(data)
	if err != nil {
		return err
	}
	if s.index == nil {
		if id, _ := document.String(doc, "id"); id != "" {
			s.id = id
		}
	}
	return s.Deserialize(doc)
}
