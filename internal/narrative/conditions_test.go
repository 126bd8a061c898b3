package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/inventory"
	"github.com/AaronLay10/NarrativeEngine/internal/services"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

func newContext(t *testing.T) (*GameContext, *inventory.Memory) {
	t.Helper()
	local := variables.NewStore("local")
	global := variables.NewStore("global")
	require.NoError(t, variables.Add(local, "hp", 5))
	require.NoError(t, variables.Add(local, "gold", 5))
	require.NoError(t, variables.Add(global, "gold", 100))
	require.NoError(t, variables.Add(global, "luck", 0.75))
	require.NoError(t, variables.Add(local, "brave", true))
	require.NoError(t, variables.Add(local, "name", "Ada"))

	catalog, err := inventory.NewCatalog(inventory.Item{ID: "key"}, inventory.Item{ID: "potion", Consumable: true})
	require.NoError(t, err)
	inv := inventory.NewMemory(catalog)
	loc := services.NewRegistry()
	require.NoError(t, loc.Register(inventory.ServiceName, inv))

	return NewGameContext(variables.NewContext(local, global), loc), inv
}

func TestCheckIntBoundary(t *testing.T) {
	ctx, _ := newContext(t)

	cond := &CheckInt{Variable: "hp", Operand: EqualOrGreaterThan, Value: 5}
	assert.True(t, cond.IsFulfilled(ctx))

	require.NoError(t, variables.SetLocal(ctx.Variables(), "hp", 4))
	assert.False(t, cond.IsFulfilled(ctx))

	missing := &CheckInt{Variable: "mana", Operand: EqualOrGreaterThan, Value: 5}
	assert.False(t, missing.IsFulfilled(ctx))
}

func TestCheckIntOperands(t *testing.T) {
	ctx, _ := newContext(t)
	cases := []struct {
		op   Operand
		val  int
		want bool
	}{
		{EqualTo, 5, true},
		{EqualTo, 4, false},
		{GreaterThan, 4, true},
		{GreaterThan, 5, false},
		{LesserThan, 6, true},
		{LesserThan, 5, false},
		{EqualOrGreaterThan, 6, false},
		{EqualOrLesserThan, 5, true},
		{EqualOrLesserThan, 4, false},
		{Operand("Between"), 5, false},
	}
	for _, tc := range cases {
		cond := &CheckInt{Variable: "hp", Operand: tc.op, Value: tc.val}
		assert.Equal(t, tc.want, cond.IsFulfilled(ctx), cond.Describe())
	}
}

func TestCheckIntUsesLocalPrecedence(t *testing.T) {
	ctx, _ := newContext(t)
	assert.True(t, (&CheckInt{Variable: "gold", Operand: EqualTo, Value: 5}).IsFulfilled(ctx))
	assert.False(t, (&CheckInt{Variable: "gold", Operand: EqualTo, Value: 100}).IsFulfilled(ctx))
}

func TestConditionsAbsorbMistypedInput(t *testing.T) {
	ctx, _ := newContext(t)
	assert.False(t, (&CheckInt{Variable: "name", Operand: EqualTo, Value: 0}).IsFulfilled(ctx))
	assert.False(t, (&CheckBool{Variable: "hp", Value: true}).IsFulfilled(ctx))
	assert.False(t, (&CheckString{Variable: "brave", Value: "true"}).IsFulfilled(ctx))
	assert.False(t, (&CheckDouble{Variable: "hp", Operand: EqualTo, Value: 5}).IsFulfilled(ctx))
	assert.False(t, (&CheckInt{Variable: "hp", Operand: EqualTo, Value: 5}).IsFulfilled(nil))
}

func TestOtherConditions(t *testing.T) {
	ctx, inv := newContext(t)

	assert.True(t, (&CheckDouble{Variable: "luck", Operand: GreaterThan, Value: 0.5}).IsFulfilled(ctx))
	assert.True(t, (&CheckBool{Variable: "brave", Value: true}).IsFulfilled(ctx))
	assert.True(t, (&CheckString{Variable: "name", Value: "Ada"}).IsFulfilled(ctx))
	assert.False(t, (&CheckString{Variable: "name", Value: "ada"}).IsFulfilled(ctx))

	hasKey := &HasItem{ItemID: "key"}
	assert.False(t, hasKey.IsFulfilled(ctx))
	require.NoError(t, inv.AddItem("key", 1))
	assert.True(t, hasKey.IsFulfilled(ctx))

	assert.False(t, (&HasItem{ItemID: "key", Service: "bag"}).IsFulfilled(ctx))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "hp >= 5", (&CheckInt{Variable: "hp", Operand: EqualOrGreaterThan, Value: 5}).Describe())
	assert.Equal(t, "luck < 0.5", (&CheckDouble{Variable: "luck", Operand: LesserThan, Value: 0.5}).Describe())
	assert.Equal(t, "hp ? 5", (&CheckInt{Variable: "hp", Operand: "Nope", Value: 5}).Describe())
	assert.Equal(t, "brave == false", (&CheckBool{Variable: "brave"}).Describe())
	assert.Equal(t, `name == "Ada"`, (&CheckString{Variable: "name", Value: "Ada"}).Describe())
	assert.Equal(t, "has item key", (&HasItem{ItemID: "key"}).Describe())
}

func TestOperandSymbols(t *testing.T) {
	var symbols []string
	for _, op := range Operands() {
		assert.True(t, op.Valid())
		symbols = append(symbols, op.Symbol())
	}
	assert.Equal(t, []string{"==", ">", "<", ">=", "<="}, symbols)
	assert.False(t, Operand("").Valid())
}
