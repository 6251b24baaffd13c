package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/cart"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
)

// StockReader is the part of the inventory store the coordinator reads.
type StockReader interface {
	FindByName(ctx context.Context, shopID, name string) (*model.InventoryItem, error)
	BatchGetByIDs(ctx context.Context, shopID string, itemIDs []string) ([]model.InventoryItem, error)
}

// Coordinator turns a cart into a committed sale.
type Coordinator struct {
	stock         StockReader
	ledger        sale.Ledger
	storeTimeout  time.Duration
	commitTimeout time.Duration
	now           func() time.Time
}

func NewCoordinator(stock StockReader, ledger sale.Ledger, storeTimeout, commitTimeout time.Duration) *Coordinator {
	return &Coordinator{
		stock:         stock,
		ledger:        ledger,
		storeTimeout:  storeTimeout,
		commitTimeout: commitTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Commit validates c against persisted stock and then, in one transaction,
// writes the sale and decrements every item. The cart is never modified;
// clearing it on success is the caller's job.
//
// Once the transaction starts it no longer observes ctx cancellation and is
// bounded by the commit timeout instead.
func (co *Coordinator) Commit(ctx context.Context, s auth.Session, c *cart.Cart) (*model.Sale, error) {
	if c.IsEmpty() {
		return nil, apperror.ErrEmptyCart
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	total := c.Total()
	if _, err := model.ToMinor(total); err != nil {
		return nil, apperror.InvalidArgument("cart total %s exceeds the storable amount", total.StringFixed(model.MinorUnits))
	}

	lines := c.Lines()
	need := c.Quantities()
	names := make(map[string]string, len(need))
	for _, l := range lines {
		names[l.ItemID] = l.ItemName
	}
	itemIDs := make([]string, 0, len(need))
	for id := range need {
		itemIDs = append(itemIDs, id)
	}
	// Fixed lock order across concurrent commits.
	sort.Strings(itemIDs)

	if err := co.precheck(ctx, s.ShopID, itemIDs, need, names); err != nil {
		return nil, err
	}

	rec := &model.Sale{
		ID:        uuid.New().String(),
		ShopID:    s.ShopID,
		RepID:     s.UserID,
		Lines:     make([]model.SaleLine, len(lines)),
		Total:     total,
		CreatedAt: co.now(),
	}
	for i, l := range lines {
		rec.Lines[i] = model.SaleLine{
			ItemID:    l.ItemID,
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), co.commitTimeout)
	defer cancel()

	err := co.ledger.RunInTx(commitCtx, func(ctx context.Context, tx sale.LedgerTx) error {
		if err := tx.InsertSale(ctx, rec); err != nil {
			return err
		}
		for _, id := range itemIDs {
			err := tx.DecrementStock(ctx, sale.StockDecrement{
				ShopID:   s.ShopID,
				ItemID:   id,
				ItemName: names[id],
				Quantity: need[id],
				SaleID:   rec.ID,
				UserID:   s.UserID,
				At:       rec.CreatedAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return rec, nil
}

// precheck rejects the cart early when current stock cannot cover it. It does
// not write; the conditional decrements are the real guard.
func (co *Coordinator) precheck(ctx context.Context, shopID string, itemIDs []string, need map[string]int, names map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, co.storeTimeout)
	defer cancel()

	items, err := co.stock.BatchGetByIDs(ctx, shopID, itemIDs)
	if err != nil {
		return apperror.Upstream(err)
	}
	current := make(map[string]int, len(items))
	for _, item := range items {
		current[item.ID] = item.Quantity
	}

	for _, id := range itemIDs {
		have, ok := current[id]
		if !ok {
			return apperror.NotFound("item %q", names[id])
		}
		if have < need[id] {
			return &apperror.StockError{ItemID: id, ItemName: names[id], Requested: need[id], Available: have}
		}
	}
	return nil
}
