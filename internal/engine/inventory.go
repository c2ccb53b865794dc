package engine

import (
	"fmt"
	"sync"

	"github.com/greenvale/farmsim/server/internal/domain/item"
)

// MaxStack is the most of one item the farm can hold.
const MaxStack = 999

// InventoryFullError is returned when an addition would exceed MaxStack.
type InventoryFullError struct {
	Item item.ItemType
	Have int
	Add  int
}

func (e *InventoryFullError) Error() string {
	return fmt.Sprintf("no room for %d %s (holding %d of %d)", e.Add, e.Item, e.Have, MaxStack)
}

// InsufficientItemsError is returned when a removal asks for more than is held.
type InsufficientItemsError struct {
	Item item.ItemType
	Have int
	Need int
}

func (e *InsufficientItemsError) Error() string {
	return fmt.Sprintf("need %d %s, have %d", e.Need, e.Item, e.Have)
}

// Inventory holds the farm's item counts. Safe for concurrent use: the
// cooking worker, fishing requests and rollover observers all touch it.
type Inventory struct {
	mu    sync.Mutex
	items map[item.ItemType]int
}

// NewInventory creates an inventory with optional starting stock.
func NewInventory(start ...item.ItemStack) *Inventory {
	inv := &Inventory{items: make(map[item.ItemType]int)}
	for _, s := range start {
		if s.Quantity > 0 {
			inv.items[s.Type] += s.Quantity
		}
	}
	return inv
}

// Add puts qty of t into the inventory.
func (inv *Inventory) Add(t item.ItemType, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if have := inv.items[t]; have+qty > MaxStack {
		return &InventoryFullError{Item: t, Have: have, Add: qty}
	}
	inv.items[t] += qty
	return nil
}

// Remove takes every stack or nothing.
func (inv *Inventory) Remove(stacks ...item.ItemStack) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	need := make(map[item.ItemType]int, len(stacks))
	for _, s := range stacks {
		if s.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive, got %d %s", s.Quantity, s.Type)
		}
		need[s.Type] += s.Quantity
	}
	for t, n := range need {
		if have := inv.items[t]; have < n {
			return &InsufficientItemsError{Item: t, Have: have, Need: n}
		}
	}
	for t, n := range need {
		inv.items[t] -= n
		if inv.items[t] == 0 {
			delete(inv.items, t)
		}
	}
	return nil
}

// Count returns how many of t are held.
func (inv *Inventory) Count(t item.ItemType) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items[t]
}

// Stacks returns the contents sorted by item type.
func (inv *Inventory) Stacks() []item.ItemStack {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]item.ItemStack, 0, len(inv.items))
	for t, n := range inv.items {
		out = append(out, item.ItemStack{Type: t, Quantity: n})
	}
	sortStacks(out)
	return out
}
