package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-retail-service/internal/cart"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

type CartView struct {
	Lines []cart.Line
	Total decimal.Decimal
}

func NewCartView(c *cart.Cart) *CartView {
	return &CartView{Lines: c.Lines(), Total: c.Total()}
}

// DailySales summarizes one rep's sales over a local calendar day.
type DailySales struct {
	RepID string
	From  time.Time
	To    time.Time
	Sales []model.Sale
	Total decimal.Decimal
	Count int
}

func NewDailySales(repID string, from, to time.Time, sales []model.Sale) *DailySales {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Total)
	}
	return &DailySales{RepID: repID, From: from, To: to, Sales: sales, Total: total, Count: len(sales)}
}
