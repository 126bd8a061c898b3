// Package narrative holds the story graph model: nodes, the conditions that
// gate choices and the actions that mutate game state.
package narrative

import (
	"errors"

	"github.com/AaronLay10/NarrativeEngine/internal/services"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

var (
	ErrIndexRequired     = errors.New("choice index required")
	ErrIndexOutOfRange   = errors.New("choice index out of range")
	ErrUnknownOperation  = errors.New("unknown item operation")
	ErrInvalidAmount     = errors.New("invalid item amount")
	ErrDuplicateNode     = errors.New("duplicate node")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDanglingReference = errors.New("dangling node reference")
)

// Context is what conditions read and actions write during traversal.
type Context interface {
	Variables() *variables.Context
	Services() services.Locator
}

// Inventory is the item service SetItem and HasItem talk to.
type Inventory interface {
	HasItem(itemID string) bool
	AddItem(itemID string, amount int) error
	RemoveItem(itemID string, amount int) error
}

// GameContext is the stock Context.
type GameContext struct {
	vars     *variables.Context
	services services.Locator
}

// NewGameContext wraps vars and locator. A nil vars gets fresh empty stores
// and a nil locator behaves as an empty registry.
func NewGameContext(vars *variables.Context, locator services.Locator) *GameContext {
	if vars == nil {
		vars = variables.NewContext(nil, nil)
	}
	if locator == nil {
		locator = services.NewRegistry()
	}
	return &GameContext{vars: vars, services: locator}
}

func (c *GameContext) Variables() *variables.Context { return c.vars }
func (c *GameContext) Services() services.Locator    { return c.services }

func variablesOf(ctx Context) *variables.Context {
	if ctx == nil {
		return nil
	}
	return ctx.Variables()
}
