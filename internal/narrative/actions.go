package narrative

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/NarrativeEngine/internal/services"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// ActionKind is the persisted discriminator of an action variant.
type ActionKind string

const (
	KindSetVariable ActionKind = "SetVariable"
	KindSetItem     ActionKind = "SetItem"
)

// Action is a synchronous side effect applied through a Context.
type Action interface {
	Kind() ActionKind
	Execute(ctx Context) error
	Describe() string
	action()
}

// SetVariable assigns each variable in order into Scope. The variables must
// already be declared with the same type.
type SetVariable struct {
	Scope     variables.Scope `doc:"scope"`
	Variables []variables.Variable
}

func (*SetVariable) Kind() ActionKind { return KindSetVariable }
func (*SetVariable) action()          {}

func (a *SetVariable) Execute(ctx Context) error {
	vars := variablesOf(ctx)
	if vars == nil {
		return fmt.Errorf("%s: no variable context", a.Kind())
	}
	scope := a.Scope
	if scope == "" {
		scope = variables.Local
	}
	store, err := vars.Store(scope)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Kind(), err)
	}
	for _, v := range a.Variables {
		if err := store.Assign(v.Name, v.Type, v.Value); err != nil {
			return fmt.Errorf("%s: %w", a.Kind(), err)
		}
	}
	return nil
}

func (a *SetVariable) Describe() string {
	scope := a.Scope
	if scope == "" {
		scope = variables.Local
	}
	parts := make([]string, 0, len(a.Variables))
	for _, v := range a.Variables {
		parts = append(parts, fmt.Sprintf("%s = %v", v.Name, v.Value))
	}
	return fmt.Sprintf("set %s %s", strings.ToLower(string(scope)), strings.Join(parts, ", "))
}

// ItemOperation is what SetItem does to the inventory.
type ItemOperation string

const (
	AddItem    ItemOperation = "Add"
	RemoveItem ItemOperation = "Remove"
)

// SetItem adds or removes Amount of ItemID through the inventory service.
type SetItem struct {
	ItemID    string        `doc:"itemId"`
	Operation ItemOperation `doc:"operation"`
	Amount    int           `doc:"amount"`
	Service   string        `doc:"service"`
}

// NewSetItem returns a SetItem with the default amount of 1.
func NewSetItem() *SetItem {
	return &SetItem{Operation: AddItem, Amount: 1}
}

func (*SetItem) Kind() ActionKind { return KindSetItem }
func (*SetItem) action()          {}

func (a *SetItem) Execute(ctx Context) error {
	if a.Operation != AddItem && a.Operation != RemoveItem {
		return fmt.Errorf("%s: %w: %q", a.Kind(), ErrUnknownOperation, string(a.Operation))
	}
	if a.Amount < 1 {
		return fmt.Errorf("%s: %w: %d", a.Kind(), ErrInvalidAmount, a.Amount)
	}
	if ctx == nil {
		return fmt.Errorf("%s: %w: no context", a.Kind(), services.ErrServiceNotFound)
	}
	inv, err := services.GetService[Inventory](ctx.Services(), a.Service)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Kind(), err)
	}
	if a.Operation == AddItem {
		err = inv.AddItem(a.ItemID, a.Amount)
	} else {
		err = inv.RemoveItem(a.ItemID, a.Amount)
	}
	if err != nil {
		return fmt.Errorf("%s %s %q: %w", a.Kind(), strings.ToLower(string(a.Operation)), a.ItemID, err)
	}
	return nil
}

func (a *SetItem) Describe() string {
	return fmt.Sprintf("%s %d x %s", strings.ToLower(string(a.Operation)), a.Amount, a.ItemID)
}
