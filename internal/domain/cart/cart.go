// Package cart aggregates the dishes a customer selects before placing an
// order. A Cart is plain in-memory state; Store scopes one Cart per customer.
package cart

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/otlob/internal/domain/catalog"
)

// OptString is an optional string. The zero value is unset, which is distinct
// from a set empty string.
type OptString struct {
	Value string
	Set   bool
}

// NewOptString returns a set OptString.
func NewOptString(v string) OptString {
	return OptString{Value: v, Set: true}
}

// Get returns the value and whether it is set.
func (o OptString) Get() (string, bool) {
	return o.Value, o.Set
}

// Line is one distinct (dish, notes) selection with its quantity.
type Line struct {
	ID       string
	Dish     catalog.Dish
	Quantity int
	Notes    OptString
}

// Total is the line price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.Dish.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the selected lines in insertion order.
//
// Invariants: at most one line per (dish id, notes) pair, and every stored
// line has Quantity >= 1. A Cart is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add increments the line matching the dish and notes, or appends a new line
// with quantity 1. Notes are matched by exact equality, and unset notes only
// match unset notes. It returns a copy of the affected line.
func (c *Cart) Add(dish catalog.Dish, notes OptString) Line {
	for i := range c.lines {
		l := &c.lines[i]
		if l.Dish.ID == dish.ID && l.Notes == notes {
			l.Quantity++
			return *l
		}
	}
	l := Line{
		ID:       newLineID(dish.ID),
		Dish:     dish,
		Quantity: 1,
		Notes:    notes,
	}
	c.lines = append(c.lines, l)
	return l
}

// Decrement lowers a line's quantity by one, removing the line when it would
// reach zero. It reports whether the line existed.
func (c *Cart) Decrement(lineID string) bool {
	i := c.index(lineID)
	if i < 0 {
		return false
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		return true
	}
	c.removeAt(i)
	return true
}

// Remove deletes a line regardless of quantity. It reports whether the line
// existed.
func (c *Cart) Remove(lineID string) bool {
	i := c.index(lineID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// Subtract takes the given lines out of the cart by ID, lowering each
// matching line by the given quantity. Lines added or grown after the given
// lines were read keep the difference.
func (c *Cart) Subtract(lines []Line) {
	for _, taken := range lines {
		i := c.index(taken.ID)
		if i < 0 {
			continue
		}
		if c.lines[i].Quantity > taken.Quantity {
			c.lines[i].Quantity -= taken.Quantity
			continue
		}
		c.removeAt(i)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Total is the sum of price times quantity over all lines. The delivery fee
// is not included.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Total())
	}
	return total
}

// ItemCount is the sum of quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot captures the cart contents together with derived totals.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:     c.Lines(),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}

func (c *Cart) index(lineID string) int {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Snapshot is an immutable copy of a cart.
type Snapshot struct {
	Lines     []Line
	Total     decimal.Decimal
	ItemCount int
}

// newLineID keeps line IDs path-safe: notes are free text and never part of
// the ID.
func newLineID(dishID int64) string {
	return fmt.Sprintf("%d-%s", dishID, uuid.New().String()[:8])
}
