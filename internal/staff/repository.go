package staff

import (
	"context"

	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// Repository lookups return (nil, nil) for missing rows. Creates fail with
// ErrAlreadyExists on a duplicate id or email.
type Repository interface {
	CreateShopWithOwner(ctx context.Context, shop *model.Shop, owner *model.StaffMember) error
	FindShop(ctx context.Context, id string) (*model.Shop, error)

	Create(ctx context.Context, member *model.StaffMember) error
	FindByID(ctx context.Context, id string) (*model.StaffMember, error)
	ListByShop(ctx context.Context, shopID string) ([]model.StaffMember, error)
	Delete(ctx context.Context, shopID, id string) (bool, error)
}
