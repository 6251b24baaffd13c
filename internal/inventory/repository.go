package inventory

import (
	"context"

	"github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// Repository is the inventory store. Lookups return (nil, nil) when the item
// does not exist in the shop.
type Repository interface {
	FindByID(ctx context.Context, shopID, itemID string) (*model.InventoryItem, error)
	FindByName(ctx context.Context, shopID, name string) (*model.InventoryItem, error)
	BatchGetByIDs(ctx context.Context, shopID string, itemIDs []string) ([]model.InventoryItem, error)
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error)

	// AddOrIncrement upserts by (shop, name) and logs a restock movement in one transaction.
	AddOrIncrement(ctx context.Context, in *dto.StockUpsert) (*model.InventoryItem, error)
	// AdjustStockWithMovement applies delta unless the result would be negative.
	AdjustStockWithMovement(ctx context.Context, shopID, itemID string, delta int, movement *model.InventoryMovement) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, item *model.InventoryItem) error

	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)
}
