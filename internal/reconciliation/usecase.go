package reconciliation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// UseCase is owner-only. Reconciliation is derived on demand and never stored;
// decisions are published for an external workflow.
type UseCase interface {
	Reconcile(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal) (*model.Reconciliation, error)
	Approve(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal, note string) (*model.Reconciliation, error)
	Dispute(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal, note string) (*model.Reconciliation, error)
}
