package handler

import "time"

type InventoryItem struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	UnitPrice         string    `json:"unit_price"`
	CostPrice         string    `json:"cost_price"`
	ProfitPerUnit     string    `json:"profit_per_unit"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsLowStock        bool      `json:"is_low_stock"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type InventoryMovement struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	MovementType   string    `json:"movement_type"`
	QuantityChange int       `json:"quantity_change"`
	QuantityAfter  int       `json:"quantity_after"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type AddStockRequest struct {
	Name              string  `json:"name"`
	Quantity          int     `json:"quantity"`
	UnitPrice         *string `json:"unit_price,omitempty"`
	CostPrice         *string `json:"cost_price,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Notes             string  `json:"notes,omitempty"`
}

type AdjustStockRequest struct {
	ItemID string `json:"item_id"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type UpdateItemRequest struct {
	ItemID            string  `json:"item_id"`
	UnitPrice         *string `json:"unit_price,omitempty"`
	CostPrice         *string `json:"cost_price,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
}

type GetItemRequest struct {
	ItemID string `json:"item_id"`
}

type FindItemByNameRequest struct {
	Name string `json:"name"`
}

type ListInventoryRequest struct {
	NameQuery string `json:"name_query,omitempty"`
	LowStock  bool   `json:"low_stock,omitempty"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

type ListInventoryResponse struct {
	Items []*InventoryItem `json:"items"`
	Total int              `json:"total"`
}

type SearchInventoryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchInventoryResponse struct {
	Items []*InventoryItem `json:"items"`
}

type ListMovementsRequest struct {
	ItemID       string     `json:"item_id,omitempty"`
	MovementType string     `json:"movement_type,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Page         int        `json:"page"`
	PageSize     int        `json:"page_size"`
}

type ListMovementsResponse struct {
	Movements []*InventoryMovement `json:"movements"`
	Total     int                  `json:"total"`
}
