// Package cart accumulates the lines of a sale before it is recorded.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// Line is one cart entry. UnitPrice is captured when the line is added and
// never changes afterwards.
type Line struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered, append-only list of lines owned by a single rep
// session. It is not safe for concurrent use; see Registry.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// AddLine appends quantity of the item called itemName, looked up in snapshot.
// The requested quantity must fit into the item's stock minus what this cart
// already holds of it. On error the cart is left unchanged.
func (c *Cart) AddLine(itemName string, quantity int, snapshot []model.InventoryItem) (Line, error) {
	item := lookup(itemName, snapshot)
	if item == nil {
		return Line{}, apperror.NotFound("item %q", itemName)
	}
	if quantity <= 0 {
		return Line{}, apperror.InvalidArgument("quantity must be positive, got %d", quantity)
	}

	available := item.Quantity - c.Reserved(item.ID)
	if quantity > available {
		return Line{}, &apperror.StockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Requested: quantity,
			Available: max(available, 0),
		}
	}

	line := Line{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  quantity,
		UnitPrice: item.UnitPrice,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// Reserved is the quantity of itemID already in the cart.
func (c *Cart) Reserved(itemID string) int {
	n := 0
	for _, l := range c.lines {
		if l.ItemID == itemID {
			n += l.Quantity
		}
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Quantities aggregates the cart by item id.
func (c *Cart) Quantities() map[string]int {
	out := make(map[string]int, len(c.lines))
	for _, l := range c.lines {
		out[l.ItemID] += l.Quantity
	}
	return out
}

func lookup(name string, snapshot []model.InventoryItem) *model.InventoryItem {
	key := model.NameKey(name)
	if key == "" {
		return nil
	}
	for i := range snapshot {
		if model.NameKey(snapshot[i].Name) == key {
			return &snapshot[i]
		}
	}
	return nil
}
