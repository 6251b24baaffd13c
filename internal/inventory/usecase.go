package inventory

import (
	"context"

	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

type UseCase interface {
	AddStock(ctx context.Context, s auth.Session, input *dto.AddStockInput) (*model.InventoryItem, error)
	AdjustStock(ctx context.Context, s auth.Session, input *dto.AdjustStockInput) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, s auth.Session, input *dto.UpdateItemInput) (*model.InventoryItem, error)

	GetItem(ctx context.Context, s auth.Session, itemID string) (*model.InventoryItem, error)
	FindByName(ctx context.Context, s auth.Session, name string) (*model.InventoryItem, error)
	ListInventory(ctx context.Context, s auth.Session, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error)
	ListLowStock(ctx context.Context, s auth.Session, page, pageSize int) ([]model.InventoryItem, int, error)
	SearchInventory(ctx context.Context, s auth.Session, query string, limit int) ([]model.InventoryItem, error)
	ListMovements(ctx context.Context, s auth.Session, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)

	// Refresh drops cached listings of shopID and reindexes itemIDs.
	Refresh(ctx context.Context, shopID string, itemIDs []string) error
}
