package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is an immutable ledger entry. Total is fixed when the sale is created
// from the cart's frozen prices.
type Sale struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	RepID     string          `json:"rep_id"`
	Lines     []SaleLine      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type SaleLine struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal recomputes Σ quantity × price over the sale's own lines.
func (s *Sale) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemIDs returns the distinct items touched by the sale in line order.
func (s *Sale) ItemIDs() []string {
	seen := make(map[string]struct{}, len(s.Lines))
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		ids = append(ids, l.ItemID)
	}
	return ids
}
