package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/cart"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
	"github.com/fekuna/omnipos-retail-service/internal/sale/dto"
	"github.com/fekuna/omnipos-retail-service/pkg/cache"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

// Refresher is implemented by the inventory usecase.
type Refresher interface {
	Refresh(ctx context.Context, shopID string, itemIDs []string) error
}

type Config struct {
	StoreTimeout   time.Duration
	CommitTimeout  time.Duration
	IdempotencyTTL time.Duration
	Location       *time.Location
}

type Option func(*saleUseCase)

// WithClock overrides the clock used for sale timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(uc *saleUseCase) {
		uc.now = now
		uc.coordinator.now = func() time.Time { return now().UTC() }
	}
}

type saleUseCase struct {
	coordinator *Coordinator
	stock       StockReader
	ledger      sale.Ledger
	carts       *cart.Registry
	refresher   Refresher
	cache       *cache.RedisClient
	publisher   events.Publisher
	cfg         Config
	now         func() time.Time
	logger      logger.ZapLogger
}

// NewSaleUseCase wires the sale service. cache may be nil, which disables
// request idempotency.
func NewSaleUseCase(stock StockReader, ledger sale.Ledger, refresher Refresher, cache *cache.RedisClient, publisher events.Publisher, cfg Config, log logger.ZapLogger, opts ...Option) sale.UseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	uc := &saleUseCase{
		coordinator: NewCoordinator(stock, ledger, cfg.StoreTimeout, cfg.CommitTimeout),
		stock:       stock,
		ledger:      ledger,
		carts:       cart.NewRegistry(),
		refresher:   refresher,
		cache:       cache,
		publisher:   publisher,
		cfg:         cfg,
		now:         time.Now,
		logger:      log,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *saleUseCase) AddToCart(ctx context.Context, s auth.Session, itemName string, quantity int) (*dto.CartView, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
	defer cancel()
	item, err := uc.stock.FindByName(lookupCtx, s.ShopID, itemName)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	var snapshot []model.InventoryItem
	if item != nil {
		snapshot = append(snapshot, *item)
	}

	var view *dto.CartView
	err = uc.carts.With(s.UserID, func(c *cart.Cart) error {
		if _, err := c.AddLine(itemName, quantity, snapshot); err != nil {
			return err
		}
		view = dto.NewCartView(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (uc *saleUseCase) GetCart(ctx context.Context, s auth.Session) (*dto.CartView, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var view *dto.CartView
	_ = uc.carts.With(s.UserID, func(c *cart.Cart) error {
		view = dto.NewCartView(c)
		return nil
	})
	return view, nil
}

func (uc *saleUseCase) CancelCart(ctx context.Context, s auth.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return uc.carts.With(s.UserID, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (uc *saleUseCase) DiscardCart(userID string) {
	uc.carts.Discard(userID)
}

func (uc *saleUseCase) RecordSale(ctx context.Context, s auth.Session, requestID string) (*model.Sale, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var rec *model.Sale
	err := uc.carts.With(s.UserID, func(c *cart.Cart) error {
		if c.IsEmpty() {
			return apperror.ErrEmptyCart
		}
		release, err := uc.claimRequest(ctx, s, requestID)
		if err != nil {
			return err
		}
		rec, err = uc.coordinator.Commit(ctx, s, c)
		if err != nil {
			release()
			return err
		}
		c.Clear()
		return nil
	})
	if err != nil {
		uc.logger.Warn("Sale rejected",
			zap.String("shop_id", s.ShopID),
			zap.String("rep_id", s.UserID),
			zap.Bool("retryable", apperror.Retryable(err)),
			zap.Error(err),
		)
		return nil, err
	}

	uc.logger.Info("Sale recorded",
		zap.String("sale_id", rec.ID),
		zap.String("shop_id", rec.ShopID),
		zap.String("rep_id", rec.RepID),
		zap.String("total", rec.Total.StringFixed(model.MinorUnits)),
		zap.Int("lines", len(rec.Lines)),
	)
	uc.afterCommit(ctx, rec)
	return rec, nil
}

// claimRequest marks requestID as in flight. The returned func forgets the
// claim so a failed sale can be resubmitted with the same id.
func (uc *saleUseCase) claimRequest(ctx context.Context, s auth.Session, requestID string) (func(), error) {
	if requestID == "" || uc.cache == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("sale:idempotency:%s:%s:%s", s.ShopID, s.UserID, requestID)
	ok, err := uc.cache.SetIdempotency(ctx, key, uc.cfg.IdempotencyTTL)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: request %s", apperror.ErrDuplicateRequest, requestID)
	}
	return func() {
		if err := uc.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); err != nil {
			uc.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// afterCommit refreshes derived inventory views and announces the sale. The
// sale is already durable, so failures here are only logged.
func (uc *saleUseCase) afterCommit(ctx context.Context, rec *model.Sale) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.StoreTimeout)
	defer cancel()

	itemIDs := rec.ItemIDs()
	if uc.refresher != nil {
		if err := uc.refresher.Refresh(ctx, rec.ShopID, itemIDs); err != nil {
			uc.logger.Warn("inventory refresh after sale failed", zap.String("sale_id", rec.ID), zap.Error(err))
		}
	}
	uc.publisher.Publish(ctx, events.TypeSaleRecorded, rec.ShopID, events.SaleRecorded{
		SaleID:  rec.ID,
		RepID:   rec.RepID,
		Total:   rec.Total.StringFixed(model.MinorUnits),
		ItemIDs: itemIDs,
	})
	uc.publisher.Publish(ctx, events.TypeStockChanged, rec.ShopID, events.StockChanged{
		ItemIDs: itemIDs,
		Reason:  string(model.MovementSale),
		SaleID:  rec.ID,
	})
}

func (uc *saleUseCase) GetSale(ctx context.Context, s auth.Session, saleID string) (*model.Sale, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
	defer cancel()

	rec, err := uc.ledger.FindByID(ctx, s.ShopID, saleID)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if rec == nil || (!s.IsOwner() && rec.RepID != s.UserID) {
		return nil, apperror.NotFound("sale %s", saleID)
	}
	return rec, nil
}

// ListTodayForRep lists repID's sales for the current local day. Reps may
// only list their own; an empty repID means the caller.
func (uc *saleUseCase) ListTodayForRep(ctx context.Context, s auth.Session, repID string) (*dto.DailySales, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if repID == "" {
		repID = s.UserID
	}
	if !s.IsOwner() && repID != s.UserID {
		return nil, apperror.Forbidden("reps can only list their own sales")
	}

	from, to := sale.DayRange(uc.now(), uc.cfg.Location)

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
	defer cancel()
	sales, err := uc.ledger.ListForRep(ctx, s.ShopID, repID, from, to)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return dto.NewDailySales(repID, from, to, sales), nil
}
