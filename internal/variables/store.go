package variables

import (
	"fmt"
)

// Store is an ordered collection of variables, unique by name. A store is
// not synchronized; it belongs to a single session.
type Store struct {
	id    string
	vars  []Variable
	index map[string]int
}

// NewStore creates an empty store labelled id ("local", "global").
func NewStore(id string) *Store {
	return &Store{id: id, index: make(map[string]int)}
}

// ID returns the store label.
func (s *Store) ID() string { return s.id }

// Len returns the number of declared variables.
func (s *Store) Len() int { return len(s.vars) }

// HasVariable reports whether name is declared.
func (s *Store) HasVariable(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Lookup returns a copy of the named variable.
func (s *Store) Lookup(name string) (Variable, bool) {
	i, ok := s.index[name]
	if !ok {
		return Variable{}, false
	}
	return s.vars[i], true
}

// Variables returns the variables in declaration order.
func (s *Store) Variables() []Variable {
	out := make([]Variable, len(s.vars))
	copy(out, s.vars)
	return out
}

// Declare adds v if its name is not yet declared. It is the untyped
// counterpart of Add; the value must conform to v.Type.
func (s *Store) Declare(v Variable) error {
	if v.Name == "" {
		return ErrEmptyName
	}
	if !v.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedVariableType, string(v.Type))
	}
	value, err := Coerce(v.Type, v.Value)
	if err != nil {
		return fmt.Errorf("declare %q: %w", v.Name, err)
	}
	if s.HasVariable(v.Name) {
		return nil
	}
	s.insert(Variable{Name: v.Name, Type: v.Type, Value: value})
	return nil
}

// Assign overwrites the named variable. t must match the declared type;
// the value is converted to that type's Go representation.
func (s *Store) Assign(name string, t Type, value any) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedVariableType, string(t))
	}
	i, err := s.find(name, t)
	if err != nil {
		return err
	}
	converted, err := Coerce(t, value)
	if err != nil {
		return fmt.Errorf("assign %q: %w", name, err)
	}
	s.vars[i].Value = converted
	return nil
}

// Clear removes every variable.
func (s *Store) Clear() {
	s.vars = nil
	s.index = make(map[string]int)
}

// Replace swaps the contents of s for a copy of from. The id of s is kept.
func (s *Store) Replace(from *Store) {
	next := NewStore(s.id)
	for _, v := range from.vars {
		next.insert(v)
	}
	s.vars = next.vars
	s.index = next.index
}

func (s *Store) insert(v Variable) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[v.Name] = len(s.vars)
	s.vars = append(s.vars, v)
}

func (s *Store) find(name string, t Type) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q in %s store", ErrVariableNotFound, name, s.id)
	}
	if declared := s.vars[i].Type; declared != t {
		return 0, fmt.Errorf("%w: %q is %s, not %s", ErrVariableTypeMismatch, name, declared, t)
	}
	return i, nil
}

// Add declares name with the type of T. It is a no-op when name already
// exists, whatever its type.
func Add[T any](s *Store, name string, value T) error {
	t, err := TypeOf[T]()
	if err != nil {
		return err
	}
	if name == "" {
		return ErrEmptyName
	}
	if s.HasVariable(name) {
		return nil
	}
	s.insert(Variable{Name: name, Type: t, Value: value})
	return nil
}

// Set overwrites an existing variable of type T.
func Set[T any](s *Store, name string, value T) error {
	t, err := TypeOf[T]()
	if err != nil {
		return err
	}
	i, err := s.find(name, t)
	if err != nil {
		return err
	}
	s.vars[i].Value = value
	return nil
}

// Get reads a variable of type T.
func Get[T any](s *Store, name string) (T, error) {
	var zero T
	t, err := TypeOf[T]()
	if err != nil {
		return zero, err
	}
	i, err := s.find(name, t)
	if err != nil {
		return zero, err
	}
	v, ok := s.vars[i].Value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T", ErrVariableTypeMismatch, name, s.vars[i].Value)
	}
	return v, nil
}
