package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation compares a rep's recorded sales for a day with the cash they
// report. It is computed, never persisted.
type Reconciliation struct {
	RepID            string          `json:"rep_id"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	SystemTotal      decimal.Decimal `json:"system_total"`
	TransactionCount int             `json:"transaction_count"`
	ReportedCash     decimal.Decimal `json:"reported_cash"`
	Difference       decimal.Decimal `json:"difference"`
	Match            bool            `json:"match"`
}
