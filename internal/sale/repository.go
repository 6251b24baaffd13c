package sale

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// Ledger is the append-only sale store. RunInTx is the only way to write to
// it; everything fn does through tx commits or rolls back together.
type Ledger interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	// ListForRep returns the rep's sales created in [from, to), oldest first.
	ListForRep(ctx context.Context, shopID, repID string, from, to time.Time) ([]model.Sale, error)
	FindByID(ctx context.Context, shopID, saleID string) (*model.Sale, error)
}

type LedgerTx interface {
	InsertSale(ctx context.Context, sale *model.Sale) error
	// DecrementStock removes d.Quantity from the item only if that much is on
	// hand. It fails with a race StockError when the guard rejects the update
	// and with ErrNotFound when the item does not exist.
	DecrementStock(ctx context.Context, d StockDecrement) error
}

type StockDecrement struct {
	ShopID   string
	ItemID   string
	ItemName string
	Quantity int
	SaleID   string
	UserID   string
	At       time.Time
}

// DayRange returns the bounds of the local calendar day containing t, in UTC.
func DayRange(t time.Time, loc *time.Location) (from, to time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
