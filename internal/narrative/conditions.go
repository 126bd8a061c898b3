package narrative

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/AaronLay10/NarrativeEngine/internal/services"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// ConditionKind is the persisted discriminator of a condition variant.
type ConditionKind string

const (
	KindCheckInt    ConditionKind = "CheckInt"
	KindCheckDouble ConditionKind = "CheckDouble"
	KindCheckBool   ConditionKind = "CheckBool"
	KindCheckString ConditionKind = "CheckString"
	KindHasItem     ConditionKind = "HasItem"
)

// Condition is a read-only predicate over a Context. Conditions never fail:
// a missing or mistyped input makes them false.
type Condition interface {
	Kind() ConditionKind
	IsFulfilled(ctx Context) bool
	Describe() string
	condition()
}

// Operand is a comparison operator, persisted by name.
type Operand string

const (
	EqualTo            Operand = "EqualTo"
	GreaterThan        Operand = "GreaterThan"
	LesserThan         Operand = "LesserThan"
	EqualOrGreaterThan Operand = "EqualOrGreaterThan"
	EqualOrLesserThan  Operand = "EqualOrLesserThan"
)

// Operands lists the known operators.
func Operands() []Operand {
	return []Operand{EqualTo, GreaterThan, LesserThan, EqualOrGreaterThan, EqualOrLesserThan}
}

func (o Operand) Valid() bool { return o.Symbol() != "?" }

// Symbol renders o for descriptions; unknown operands render "?".
func (o Operand) Symbol() string {
	switch o {
	case EqualTo:
		return "=="
	case GreaterThan:
		return ">"
	case LesserThan:
		return "<"
	case EqualOrGreaterThan:
		return ">="
	case EqualOrLesserThan:
		return "<="
	}
	return "?"
}

// compare applies o to got and want. Unknown operands are false.
func compare[N cmp.Ordered](o Operand, got, want N) bool {
	switch o {
	case EqualTo:
		return got == want
	case GreaterThan:
		return got > want
	case LesserThan:
		return got < want
	case EqualOrGreaterThan:
		return got >= want
	case EqualOrLesserThan:
		return got <= want
	}
	return false
}

// find reads name through the context's variable namespace.
func find[T any](ctx Context, name string) (T, bool) {
	vars := variablesOf(ctx)
	if vars == nil {
		var zero T
		return zero, false
	}
	v, err := variables.Find[T](vars, name)
	return v, err == nil
}

// CheckInt compares an Int variable against Value.
type CheckInt struct {
	Variable string  `doc:"variable"`
	Operand  Operand `doc:"operand"`
	Value    int     `doc:"value"`
}

func (*CheckInt) Kind() ConditionKind { return KindCheckInt }
func (*CheckInt) condition()          {}

func (c *CheckInt) IsFulfilled(ctx Context) bool {
	got, ok := find[int](ctx, c.Variable)
	return ok && compare(c.Operand, got, c.Value)
}

func (c *CheckInt) Describe() string {
	return fmt.Sprintf("%s %s %d", c.Variable, c.Operand.Symbol(), c.Value)
}

// CheckDouble compares a Double variable against Value.
type CheckDouble struct {
	Variable string  `doc:"variable"`
	Operand  Operand `doc:"operand"`
	Value    float64 `doc:"value"`
}

func (*CheckDouble) Kind() ConditionKind { return KindCheckDouble }
func (*CheckDouble) condition()          {}

func (c *CheckDouble) IsFulfilled(ctx Context) bool {
	got, ok := find[float64](ctx, c.Variable)
	return ok && compare(c.Operand, got, c.Value)
}

func (c *CheckDouble) Describe() string {
	return fmt.Sprintf("%s %s %s", c.Variable, c.Operand.Symbol(), strconv.FormatFloat(c.Value, 'g', -1, 64))
}

// CheckBool holds when a Bool variable equals Value.
type CheckBool struct {
	Variable string `doc:"variable"`
	Value    bool   `doc:"value"`
}

func (*CheckBool) Kind() ConditionKind { return KindCheckBool }
func (*CheckBool) condition()          {}

func (c *CheckBool) IsFulfilled(ctx Context) bool {
	got, ok := find[bool](ctx, c.Variable)
	return ok && got == c.Value
}

func (c *CheckBool) Describe() string {
	return fmt.Sprintf("%s == %t", c.Variable, c.Value)
}

// CheckString holds when a String variable equals Value.
type CheckString struct {
	Variable string `doc:"variable"`
	Value    string `doc:"value"`
}

func (*CheckString) Kind() ConditionKind { return KindCheckString }
func (*CheckString) condition()          {}

func (c *CheckString) IsFulfilled(ctx Context) bool {
	got, ok := find[string](ctx, c.Variable)
	return ok && got == c.Value
}

func (c *CheckString) Describe() string {
	return fmt.Sprintf("%s == %q", c.Variable, c.Value)
}

// HasItem holds when the inventory service holds ItemID. An empty Service
// uses the first registered Inventory.
type HasItem struct {
	ItemID  string `doc:"itemId"`
	Service string `doc:"service"`
}

func (*HasItem) Kind() ConditionKind { return KindHasItem }
func (*HasItem) condition()          {}

func (c *HasItem) IsFulfilled(ctx Context) bool {
	if ctx == nil {
		return false
	}
	inv, err := services.GetService[Inventory](ctx.Services(), c.Service)
	if err != nil {
		return false
	}
	return inv.HasItem(c.ItemID)
}

func (c *HasItem) Describe() string {
	return "has item " + c.ItemID
}

// AllFulfilled is the conjunction of conds; an empty list holds.
func AllFulfilled(conds []Condition, ctx Context) bool {
	for _, c := range conds {
		if c == nil || !c.IsFulfilled(ctx) {
			return false
		}
	}
	return true
}
