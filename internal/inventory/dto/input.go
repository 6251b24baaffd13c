package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddStockInput restocks an item by name, creating it when the shop has no
// item with that name yet. UnitPrice is required for new items.
type AddStockInput struct {
	Name              string
	Quantity          int
	UnitPrice         *decimal.Decimal
	CostPrice         *decimal.Decimal
	LowStockThreshold *int
	Notes             string
}

type AdjustStockInput struct {
	ItemID string
	Delta  int
	Reason string
}

type UpdateItemInput struct {
	ItemID            string
	UnitPrice         *decimal.Decimal
	CostPrice         *decimal.Decimal
	LowStockThreshold *int
}

// StockUpsert is the repository-level add-or-increment. Nil price fields keep
// the stored value of an existing item.
type StockUpsert struct {
	ID                string
	ShopID            string
	Name              string
	Quantity          int
	UnitPrice         *decimal.Decimal
	CostPrice         *decimal.Decimal
	LowStockThreshold *int
	MovementID        string
	Notes             string
	CreatedBy         string
	Now               time.Time
}
