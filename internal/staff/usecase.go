package staff

import (
	"context"

	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/staff/dto"
)

type UseCase interface {
	RegisterShop(ctx context.Context, input *dto.RegisterShopInput) (*model.Shop, *model.StaffMember, error)
	AddRep(ctx context.Context, s auth.Session, input *dto.AddRepInput) (*model.StaffMember, error)
	ListStaff(ctx context.Context, s auth.Session) ([]model.StaffMember, error)
	RemoveRep(ctx context.Context, s auth.Session, staffID string) error

	// ResolveSession implements auth.Resolver.
	ResolveSession(ctx context.Context, userID string) (auth.Session, error)
}
