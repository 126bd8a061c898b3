// Package inventory is the stock item service that story conditions and
// actions reach through the service locator.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Jeffail/gabs/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
)

// ServiceName is the locator name the inventory is registered under.
const ServiceName = "inventory"

// MaxStackSize caps the amount of a consumable that can be held.
const MaxStackSize = 99

var (
	ErrUnknownItem   = errors.New("unknown item")
	ErrItemNotHeld   = errors.New("item not held")
	ErrInvalidAmount = errors.New("invalid item amount")
)

// Item describes one kind of thing a player can hold.
type Item struct {
	ID          string `doc:"id"`
	Name        string `doc:"name"`
	Description string `doc:"description"`
	Consumable  bool   `doc:"consumable"`
	Icon        string `doc:"icon"`
}

// MaxStack returns how many of the item can be held at once.
func (i Item) MaxStack() int {
	if i.Consumable {
		return MaxStackSize
	}
	return 1
}

// Catalog is the set of items known to a game.
type Catalog struct {
	items map[string]Item
	order []string
}

func NewCatalog(items ...Item) (*Catalog, error) {
	c := &Catalog{items: make(map[string]Item)}
	for _, item := range items {
		if err := c.Add(item); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalog reads {"items": [{"id", "name", ...}]} or a bare array.
func LoadCatalog(doc *gabs.Container) (*Catalog, error) {
	entries, ok := document.Array(doc)
	if !ok {
		list, err := document.List(doc, "items")
		if err != nil {
			return nil, err
		}
		entries = list
	}

	c := &Catalog{items: make(map[string]Item)}
	for i, entry := range entries {
		path := fmt.Sprintf("items[%d]", i)
		if err := document.RequireNonNull(entry, "id"); err != nil {
			return nil, document.WithPath(err, path)
		}
		var item Item
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:    "doc",
			DecodeHook: document.StrictScalars,
			Result:     &item,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(entry.Data()); err != nil {
			return nil, document.WithPath(err, path)
		}
		if err := c.Add(item); err != nil {
			return nil, document.WithPath(err, path)
		}
	}
	return c, nil
}

// Add registers item in the catalog.
func (c *Catalog) Add(item Item) error {
	if item.ID == "" {
		return errors.New("item id is empty")
	}
	if _, ok := c.items[item.ID]; ok {
		return fmt.Errorf("duplicate item %q", item.ID)
	}
	c.items[item.ID] = item
	c.order = append(c.order, item.ID)
	return nil
}

func (c *Catalog) Item(id string) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns the catalog in declaration order.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Stack is a held amount of one item.
type Stack struct {
	Item   Item
	Amount int
}

// Memory is an in-process inventory backed by a catalog.
type Memory struct {
	catalog *Catalog

	mu   sync.RWMutex
	held map[string]int
}

// NewMemory creates an empty inventory. A nil catalog knows no items.
func NewMemory(catalog *Catalog) *Memory {
	if catalog == nil {
		catalog, _ = NewCatalog()
	}
	return &Memory{catalog: catalog, held: make(map[string]int)}
}

func (m *Memory) Catalog() *Catalog { return m.catalog }

func (m *Memory) HasItem(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held[id] > 0
}

// Amount returns how many of id are held.
func (m *Memory) Amount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held[id]
}

// AddItem adds amount of id. Non-consumables are held once; consumable
// stacks stop at MaxStackSize.
func (m *Memory) AddItem(id string, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	item, ok := m.catalog.Item(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[id] += min(amount, item.MaxStack()-m.held[id])
	return nil
}

// RemoveItem takes amount of id away. A stack that reaches zero is dropped.
func (m *Memory) RemoveItem(id string, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	have, ok := m.held[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrItemNotHeld, id)
	}
	if have-amount <= 0 {
		delete(m.held, id)
		return nil
	}
	m.held[id] = have - amount
	return nil
}

// Items returns the held stacks sorted by item id.
func (m *Memory) Items() []Stack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Stack, 0, len(m.held))
	for id, amount := range m.held {
		item, _ := m.catalog.Item(id)
		out = append(out, Stack{Item: item, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out
}

// Clear drops every held item.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = make(map[string]int)
}

// Holdings returns the held amount per item id.
func (m *Memory) Holdings() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.held))
	for id, amount := range m.held {
		out[id] = amount
	}
	return out
}

// Restore replaces the held items with holdings. Every id must be in the
// catalog and every amount positive; otherwise nothing changes.
func (m *Memory) Restore(holdings map[string]int) error {
	next := make(map[string]int, len(holdings))
	for id, amount := range holdings {
		item, ok := m.catalog.Item(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		if amount < 1 {
			return fmt.Errorf("%w: %q holds %d", ErrInvalidAmount, id, amount)
		}
		next[id] = min(amount, item.MaxStack())
	}

	m.mu.Lock()
	m.held = next
	m.mu.Unlock()
	return nil
}
