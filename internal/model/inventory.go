package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ID                string          `json:"id"`
	ShopID            string          `json:"shop_id"`
	Name              string          `json:"name"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (i *InventoryItem) ProfitPerUnit() decimal.Decimal {
	return i.UnitPrice.Sub(i.CostPrice)
}

func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity < i.LowStockThreshold
}

// NameKey is the case-insensitive identity of an item name within a shop.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type MovementType string

const (
	MovementRestock    MovementType = "restock"
	MovementAdjustment MovementType = "adjustment"
	MovementSale       MovementType = "sale"
)

type InventoryMovement struct {
	ID             string       `db:"id" json:"id"`
	ShopID         string       `db:"shop_id" json:"shop_id"`
	ItemID         string       `db:"item_id" json:"item_id"`
	MovementType   MovementType `db:"movement_type" json:"movement_type"`
	QuantityChange int          `db:"quantity_change" json:"quantity_change"`
	QuantityAfter  int          `db:"quantity_after" json:"quantity_after"`
	ReferenceID    *string      `db:"reference_id" json:"reference_id,omitempty"`
	Notes          string       `db:"notes" json:"notes"`
	CreatedBy      string       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
