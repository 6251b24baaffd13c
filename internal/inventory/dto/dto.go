package dto

import "time"

type InventoryFilters struct {
	ShopID    string
	NameQuery string // substring match on the case-folded name
	LowStock  bool   // quantity below low_stock_threshold
	Page      int
	PageSize  int
}

type MovementFilters struct {
	ShopID       string
	ItemID       string
	MovementType string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
