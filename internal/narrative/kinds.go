package narrative

import (
	"github.com/AaronLay10/NarrativeEngine/internal/registry"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// NodeTypes returns the static node table.
func NodeTypes() *registry.Registry[Node] {
	return registry.New[Node]("node").
		MustRegister(string(KindLinear), func() Node { return &Linear{} }).
		MustRegister(string(KindChoice), func() Node { return &Choice{} }).
		MustRegister(string(KindAction), func() Node { return &ActionNode{} })
}

// ConditionTypes returns the static condition table.
func ConditionTypes() *registry.Registry[Condition] {
	return registry.New[Condition]("condition").
		MustRegister(string(KindCheckInt), func() Condition { return &CheckInt{Operand: EqualTo} }).
		MustRegister(string(KindCheckDouble), func() Condition { return &CheckDouble{Operand: EqualTo} }).
		MustRegister(string(KindCheckBool), func() Condition { return &CheckBool{} }).
		MustRegister(string(KindCheckString), func() Condition { return &CheckString{} }).
		MustRegister(string(KindHasItem), func() Condition { return &HasItem{} })
}

// ActionTypes returns the static action table.
func ActionTypes() *registry.Registry[Action] {
	return registry.New[Action]("action").
		MustRegister(string(KindSetVariable), func() Action { return &SetVariable{Scope: variables.Local} }).
		MustRegister(string(KindSetItem), func() Action { return NewSetItem() })
}
