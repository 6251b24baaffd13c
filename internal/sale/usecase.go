package sale

import (
	"context"

	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale/dto"
)

type UseCase interface {
	AddToCart(ctx context.Context, s auth.Session, itemName string, quantity int) (*dto.CartView, error)
	GetCart(ctx context.Context, s auth.Session) (*dto.CartView, error)
	CancelCart(ctx context.Context, s auth.Session) error
	// DiscardCart drops userID's cart, e.g. when the rep is removed.
	DiscardCart(userID string)

	// RecordSale commits the caller's cart. requestID, when set, makes the
	// submission idempotent.
	RecordSale(ctx context.Context, s auth.Session, requestID string) (*model.Sale, error)
	GetSale(ctx context.Context, s auth.Session, saleID string) (*model.Sale, error)
	ListTodayForRep(ctx context.Context, s auth.Session, repID string) (*dto.DailySales, error)
}
