package variables

import "fmt"

// Scope selects one of the two stores of a Context.
type Scope string

const (
	Local  Scope = "Local"
	Global Scope = "Global"
)

// ParseScope maps a persisted scope name to a Scope. The empty name is Local.
func ParseScope(name string) (Scope, error) {
	switch Scope(name) {
	case "", Local:
		return Local, nil
	case Global:
		return Global, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, name)
}

// Context pairs a session-local store with the global store. It holds
// references only; writes land in the caller's stores.
type Context struct {
	local  *Store
	global *Store
}

// NewContext wraps local and global. A nil store is replaced by an empty one.
func NewContext(local, global *Store) *Context {
	if local == nil {
		local = NewStore("local")
	}
	if global == nil {
		global = NewStore("global")
	}
	return &Context{local: local, global: global}
}

func (c *Context) Local() *Store  { return c.local }
func (c *Context) Global() *Store { return c.global }

// Store returns the store for scope.
func (c *Context) Store(scope Scope) (*Store, error) {
	switch scope {
	case Local:
		return c.local, nil
	case Global:
		return c.global, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScope, string(scope))
}

// HasVariable reports whether either store declares name.
func (c *Context) HasVariable(name string) bool {
	return c.local.HasVariable(name) || c.global.HasVariable(name)
}

// Lookup finds name in the local store, then the global one.
func (c *Context) Lookup(name string) (Variable, Scope, bool) {
	if v, ok := c.local.Lookup(name); ok {
		return v, Local, true
	}
	if v, ok := c.global.Lookup(name); ok {
		return v, Global, true
	}
	return Variable{}, "", false
}

// Assign writes value into the named variable of scope.
func (c *Context) Assign(scope Scope, name string, t Type, value any) error {
	s, err := c.Store(scope)
	if err != nil {
		return err
	}
	return s.Assign(name, t, value)
}

func SetLocal[T any](c *Context, name string, value T) error {
	return Set(c.local, name, value)
}

func GetLocal[T any](c *Context, name string) (T, error) {
	return Get[T](c.local, name)
}

func SetGlobal[T any](c *Context, name string, value T) error {
	return Set(c.global, name, value)
}

func GetGlobal[T any](c *Context, name string) (T, error) {
	return Get[T](c.global, name)
}

// Find reads name from the local store, falling back to the global store
// only when the local one does not declare it. A name declared with another
// type fails ErrVariableTypeMismatch; a name declared nowhere fails
// ErrVariableNotFound.
func Find[T any](c *Context, name string) (T, error) {
	if c.local.HasVariable(name) {
		return Get[T](c.local, name)
	}
	if c.global.HasVariable(name) {
		return Get[T](c.global, name)
	}
	var zero T
	if _, err := TypeOf[T](); err != nil {
		return zero, err
	}
	return zero, fmt.Errorf("%w: %q in local or global store", ErrVariableNotFound, name)
}

// FindOr is Find with a fallback for any failure.
func FindOr[T any](c *Context, name string, fallback T) T {
	v, err := Find[T](c, name)
	if err != nil {
		return fallback
	}
	return v
}
