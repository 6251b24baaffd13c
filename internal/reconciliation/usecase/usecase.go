package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/reconciliation"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

// SalesSource is satisfied by sale.Ledger.
type SalesSource interface {
	ListForRep(ctx context.Context, shopID, repID string, from, to time.Time) ([]model.Sale, error)
}

// StaffLookup is satisfied by the staff repository.
type StaffLookup interface {
	FindByID(ctx context.Context, id string) (*model.StaffMember, error)
}

type Config struct {
	StoreTimeout time.Duration
	Location     *time.Location
	Now          func() time.Time
}

type reconciliationUseCase struct {
	sales     SalesSource
	staff     StaffLookup
	publisher events.Publisher
	cfg       Config
	logger    logger.ZapLogger
}

func NewReconciliationUseCase(sales SalesSource, staff StaffLookup, publisher events.Publisher, cfg Config, log logger.ZapLogger) reconciliation.UseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &reconciliationUseCase{
		sales:     sales,
		staff:     staff,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
	}
}

func (uc *reconciliationUseCase) Reconcile(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal) (*model.Reconciliation, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, err
	}
	if reportedCash.IsNegative() {
		return nil, apperror.InvalidArgument("reported cash must not be negative")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
	defer cancel()

	member, err := uc.staff.FindByID(ctx, repID)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if member == nil || member.ShopID != s.ShopID {
		return nil, apperror.NotFound("staff member %s", repID)
	}

	from, to := sale.DayRange(uc.cfg.Now(), uc.cfg.Location)
	sales, err := uc.sales.ListForRep(ctx, s.ShopID, repID, from, to)
	if err != nil {
		return nil, apperror.Upstream(err)
	}

	systemTotal := decimal.Zero
	for _, rec := range sales {
		systemTotal = systemTotal.Add(rec.Total)
	}
	result := reconciliation.ComputeDifference(systemTotal, reportedCash)

	return &model.Reconciliation{
		RepID:            repID,
		From:             from,
		To:               to,
		SystemTotal:      systemTotal,
		TransactionCount: len(sales),
		ReportedCash:     reportedCash,
		Difference:       result.Difference,
		Match:            result.Match,
	}, nil
}

func (uc *reconciliationUseCase) Approve(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal, note string) (*model.Reconciliation, error) {
	return uc.decide(ctx, s, events.TypeReconciliationApprove, repID, reportedCash, note)
}

func (uc *reconciliationUseCase) Dispute(ctx context.Context, s auth.Session, repID string, reportedCash decimal.Decimal, note string) (*model.Reconciliation, error) {
	return uc.decide(ctx, s, events.TypeReconciliationDispute, repID, reportedCash, note)
}

func (uc *reconciliationUseCase) decide(ctx context.Context, s auth.Session, eventType, repID string, reportedCash decimal.Decimal, note string) (*model.Reconciliation, error) {
	r, err := uc.Reconcile(ctx, s, repID, reportedCash)
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(ctx, eventType, s.ShopID, events.ReconciliationDecision{
		RepID:            r.RepID,
		SystemTotal:      r.SystemTotal.StringFixed(model.MinorUnits),
		ReportedCash:     r.ReportedCash.StringFixed(model.MinorUnits),
		Difference:       r.Difference.StringFixed(model.MinorUnits),
		TransactionCount: r.TransactionCount,
		Note:             note,
		DecidedBy:        s.UserID,
	})
	uc.logger.Info("Reconciliation decided",
		zap.String("decision", eventType),
		zap.String("shop_id", s.ShopID),
		zap.String("rep_id", repID),
		zap.Bool("match", r.Match),
		zap.String("difference", r.Difference.StringFixed(model.MinorUnits)),
	)
	return r, nil
}
