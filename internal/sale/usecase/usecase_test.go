package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/cart"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	invdto "github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	invRepo "github.com/fekuna/omnipos-retail-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
	saleRepo "github.com/fekuna/omnipos-retail-service/internal/sale/repository"
	"github.com/fekuna/omnipos-retail-service/pkg/cache"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

var (
	owner = auth.Session{UserID: "owner-1", ShopID: "shop-1", Role: model.RoleOwner}
	rep   = auth.Session{UserID: "rep-1", ShopID: "shop-1", Role: model.RoleSalesRep}
	rep2  = auth.Session{UserID: "rep-2", ShopID: "shop-1", Role: model.RoleSalesRep}
)

type fixture struct {
	db        *sqlx.DB
	inventory *invRepo.PGRepository
	ledger    *saleRepo.PGLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "sale.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return &fixture{db: db, inventory: invRepo.NewPGRepository(db), ledger: saleRepo.NewPGLedger(db)}
}

func (f *fixture) seed(t *testing.T, name string, qty int, price string) *model.InventoryItem {
	t.Helper()
	p := decimal.RequireFromString(price)
	item, err := f.inventory.AddOrIncrement(context.Background(), &invdto.StockUpsert{
		ID: uuid.NewString(), ShopID: "shop-1", Name: name, Quantity: qty, UnitPrice: &p,
		MovementID: uuid.NewString(), CreatedBy: "owner-1", Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) quantity(t *testing.T, itemID string) int {
	t.Helper()
	item, err := f.inventory.FindByID(context.Background(), "shop-1", itemID)
	require.NoError(t, err)
	return item.Quantity
}

func (f *fixture) saleCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT count(*) FROM sales`))
	return n
}

func (f *fixture) snapshot(t *testing.T) []model.InventoryItem {
	t.Helper()
	items, _, err := f.inventory.FindAll(context.Background(), &invdto.InventoryFilters{ShopID: "shop-1"})
	require.NoError(t, err)
	return items
}

func (f *fixture) coordinator(ledger sale.Ledger) *Coordinator {
	return NewCoordinator(f.inventory, ledger, 5*time.Second, 5*time.Second)
}

// failingLedger wraps a ledger and fails the Nth DecrementStock.
type failingLedger struct {
	sale.Ledger
	failOn     int
	failInsert bool
	err        error
}

func (l *failingLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx sale.LedgerTx) error) error {
	return l.Ledger.RunInTx(ctx, func(ctx context.Context, tx sale.LedgerTx) error {
		return fn(ctx, &failingTx{LedgerTx: tx, l: l})
	})
}

type failingTx struct {
	sale.LedgerTx
	l     *failingLedger
	calls int
}

func (t *failingTx) InsertSale(ctx context.Context, s *model.Sale) error {
	if t.l.failInsert {
		return t.l.err
	}
	return t.LedgerTx.InsertSale(ctx, s)
}

func (t *failingTx) DecrementStock(ctx context.Context, d sale.StockDecrement) error {
	t.calls++
	if t.calls == t.l.failOn {
		return t.l.err
	}
	return t.LedgerTx.DecrementStock(ctx, d)
}

// countingLedger records whether any store call happened.
type countingLedger struct {
	sale.Ledger
	calls atomic.Int32
}

func (l *countingLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx sale.LedgerTx) error) error {
	l.calls.Add(1)
	return l.Ledger.RunInTx(ctx, fn)
}

type countingStock struct {
	StockReader
	calls atomic.Int32
}

func (s *countingStock) BatchGetByIDs(ctx context.Context, shopID string, ids []string) ([]model.InventoryItem, error) {
	s.calls.Add(1)
	return s.StockReader.BatchGetByIDs(ctx, shopID, ids)
}

func TestCommit_EmptyCartDoesNoWrites(t *testing.T) {
	f := newFixture(t)
	ledger := &countingLedger{Ledger: f.ledger}
	stock := &countingStock{StockReader: f.inventory}
	co := NewCoordinator(stock, ledger, time.Second, time.Second)

	_, err := co.Commit(context.Background(), rep, cart.New())
	assert.ErrorIs(t, err, apperror.ErrEmptyCart)
	assert.Zero(t, ledger.calls.Load())
	assert.Zero(t, stock.calls.Load())
}

func TestCommit_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Rice Bag", 10, "25")
	c := cart.New()
	_, err := c.AddLine("Rice Bag", 1, f.snapshot(t))
	require.NoError(t, err)

	_, err = f.coordinator(f.ledger).Commit(context.Background(), auth.Session{UserID: "rep-1"}, c)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Zero(t, f.saleCount(t))
}

func TestCommit_TotalsAndDecrements(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "25")
	oil := f.seed(t, "Palm Oil", 4, "12.50")

	c := cart.New()
	_, err := c.AddLine("Rice Bag", 2, f.snapshot(t))
	require.NoError(t, err)
	_, err = c.AddLine("Palm Oil", 3, f.snapshot(t))
	require.NoError(t, err)
	_, err = c.AddLine("rice bag", 1, f.snapshot(t))
	require.NoError(t, err)

	rec, err := f.coordinator(f.ledger).Commit(context.Background(), rep, c)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("112.50").Equal(rec.Total), rec.Total.String())
	assert.True(t, rec.Total.Equal(rec.LinesTotal()))
	assert.Len(t, rec.Lines, 3)
	assert.Equal(t, 7, f.quantity(t, rice.ID))
	assert.Equal(t, 1, f.quantity(t, oil.ID))
	assert.False(t, c.IsEmpty(), "coordinator leaves clearing to the caller")
}

func TestCommit_RejectsTotalBeyondStorableRange(t *testing.T) {
	f := newFixture(t)
	gold := f.seed(t, "Gold Bar", 100000, model.MaxPrice.StringFixed(model.MinorUnits))

	c := cart.New()
	_, err := c.AddLine("Gold Bar", 100000, f.snapshot(t))
	require.NoError(t, err)

	ledger := &countingLedger{Ledger: f.ledger}
	_, err = f.coordinator(ledger).Commit(context.Background(), rep, c)
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
	assert.Zero(t, ledger.calls.Load())
	assert.Zero(t, f.saleCount(t))
	assert.Equal(t, 100000, f.quantity(t, gold.ID))
	assert.False(t, c.IsEmpty())
}

func TestCommit_RevalidationFailureLeavesEverything(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 5, "25")

	c := cart.New()
	_, err := c.AddLine("Rice Bag", 4, f.snapshot(t))
	require.NoError(t, err)

	_, err = f.inventory.AdjustStockWithMovement(context.Background(), "shop-1", rice.ID, -3, &model.InventoryMovement{
		ID: uuid.NewString(), MovementType: model.MovementAdjustment, CreatedBy: "owner-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = f.coordinator(f.ledger).Commit(context.Background(), rep, c)
	var se *apperror.StockError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 2, se.Available)
	assert.Equal(t, "Rice Bag", se.ItemName)

	assert.Zero(t, f.saleCount(t))
	assert.Equal(t, 2, f.quantity(t, rice.ID))
	assert.Len(t, c.Lines(), 1)
}

func TestCommit_MidTransactionFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "25")
	oil := f.seed(t, "Palm Oil", 10, "12.50")

	c := cart.New()
	_, err := c.AddLine("Rice Bag", 2, f.snapshot(t))
	require.NoError(t, err)
	_, err = c.AddLine("Palm Oil", 2, f.snapshot(t))
	require.NoError(t, err)

	ledger := &failingLedger{Ledger: f.ledger, failOn: 2, err: errors.New("connection reset")}
	_, err = f.coordinator(ledger).Commit(context.Background(), rep, c)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.True(t, apperror.Retryable(err))

	assert.Zero(t, f.saleCount(t))
	assert.Equal(t, 10, f.quantity(t, rice.ID))
	assert.Equal(t, 10, f.quantity(t, oil.ID))
	assert.Len(t, c.Lines(), 2)
}

func TestCommit_LedgerInsertFailure(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "25")
	c := cart.New()
	_, err := c.AddLine("Rice Bag", 2, f.snapshot(t))
	require.NoError(t, err)

	ledger := &failingLedger{Ledger: f.ledger, failInsert: true, err: context.DeadlineExceeded}
	_, err = f.coordinator(ledger).Commit(context.Background(), rep, c)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, 10, f.quantity(t, rice.ID))
	assert.Len(t, c.Lines(), 1)
}

func TestCommit_IgnoresCallerCancellationOnceCommitting(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "25")
	c := cart.New()
	_, err := c.AddLine("Rice Bag", 2, f.snapshot(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ledger := &cancelOnInsertLedger{Ledger: f.ledger, cancel: cancel}

	rec, err := f.coordinator(ledger).Commit(ctx, rep, c)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Error(t, ctx.Err())
	assert.Equal(t, 8, f.quantity(t, rice.ID))
}

type cancelOnInsertLedger struct {
	sale.Ledger
	cancel context.CancelFunc
}

func (l *cancelOnInsertLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx sale.LedgerTx) error) error {
	return l.Ledger.RunInTx(ctx, func(ctx context.Context, tx sale.LedgerTx) error {
		l.cancel()
		return fn(ctx, tx)
	})
}

func TestCommit_ConcurrentOversell(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 5, "25")
	co := f.coordinator(f.ledger)

	carts := make([]*cart.Cart, 2)
	for i := range carts {
		carts[i] = cart.New()
		_, err := carts[i].AddLine("Rice Bag", 3, f.snapshot(t))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	sessions := []auth.Session{rep, rep2}
	for i := range carts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = co.Commit(context.Background(), sessions[i], carts[i])
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		failed++
		assert.True(t,
			errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrInsufficientStock),
			"unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, f.quantity(t, rice.ID))
	assert.Equal(t, 1, f.saleCount(t))
}

type recordingRefresher struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingRefresher) Refresh(_ context.Context, _ string, itemIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, itemIDs)
	return nil
}

func newUseCase(t *testing.T, f *fixture, rc *cache.RedisClient, opts ...Option) (sale.UseCase, *events.Recorder, *recordingRefresher) {
	t.Helper()
	rec := &events.Recorder{}
	ref := &recordingRefresher{}
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	uc := NewSaleUseCase(f.inventory, f.ledger, ref, rc, rec, Config{
		StoreTimeout:   5 * time.Second,
		CommitTimeout:  5 * time.Second,
		IdempotencyTTL: time.Hour,
		Location:       lagos,
	}, logger.NewNop(), opts...)
	return uc, rec, ref
}

func TestRecordSale_RiceBag(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "45.00")
	uc, rec, ref := newUseCase(t, f, nil)
	ctx := context.Background()

	view, err := uc.AddToCart(ctx, rep, "Rice Bag", 3)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("135.00").Equal(view.Total), view.Total.String())

	_, err = uc.AddToCart(ctx, rep, "Rice Bag", 8)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock, "cart holds 3 of 10 already")

	s, err := uc.RecordSale(ctx, rep, "")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("135.00").Equal(s.Total), s.Total.String())
	assert.Equal(t, "rep-1", s.RepID)
	assert.Equal(t, 7, f.quantity(t, rice.ID))

	view, err = uc.GetCart(ctx, rep)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Zero(t, uc.(*saleUseCase).carts.Len(), "settled carts are not retained")

	require.Len(t, rec.OfType(events.TypeSaleRecorded), 1)
	require.Len(t, rec.OfType(events.TypeStockChanged), 1)
	assert.Equal(t, [][]string{{rice.ID}}, ref.calls)

	got, err := uc.GetSale(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.True(t, decimal.RequireFromString("135.00").Equal(got.Total), got.Total.String())
	_, err = uc.GetSale(ctx, rep2, s.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = uc.RecordSale(ctx, rep, "")
	assert.ErrorIs(t, err, apperror.ErrEmptyCart)
}

// stalledProducer blocks every publish until its context expires.
type stalledProducer struct{}

func (stalledProducer) Publish(ctx context.Context, _, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRecordSale_StalledBrokerDoesNotDelayResponse(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Rice Bag", 10, "45.00")
	pub := events.NewKafkaPublisher(stalledProducer{}, 2*time.Second, logger.NewNop())
	uc := NewSaleUseCase(f.inventory, f.ledger, nil, nil, pub, Config{
		StoreTimeout:  5 * time.Second,
		CommitTimeout: 5 * time.Second,
	}, logger.NewNop())
	ctx := context.Background()

	_, err := uc.AddToCart(ctx, rep, "Rice Bag", 1)
	require.NoError(t, err)

	start := time.Now()
	_, err = uc.RecordSale(ctx, rep, "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	pub.Close()
}

func TestDiscardCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Rice Bag", 10, "45.00")
	uc, _, _ := newUseCase(t, f, nil)
	ctx := context.Background()

	_, err := uc.AddToCart(ctx, rep, "Rice Bag", 2)
	require.NoError(t, err)
	_, err = uc.AddToCart(ctx, rep2, "Rice Bag", 1)
	require.NoError(t, err)
	require.Equal(t, 2, uc.(*saleUseCase).carts.Len())

	uc.DiscardCart("rep-1")
	assert.Equal(t, 1, uc.(*saleUseCase).carts.Len())

	view, err := uc.GetCart(ctx, rep)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	require.NoError(t, uc.CancelCart(ctx, rep2))
	assert.Zero(t, uc.(*saleUseCase).carts.Len())
}

func TestRecordSale_FailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 5, "25")
	uc, rec, _ := newUseCase(t, f, nil)
	ctx := context.Background()

	_, err := uc.AddToCart(ctx, rep, "Rice Bag", 4)
	require.NoError(t, err)

	_, err = f.inventory.AdjustStockWithMovement(ctx, "shop-1", rice.ID, -2, &model.InventoryMovement{
		ID: uuid.NewString(), MovementType: model.MovementAdjustment, CreatedBy: "owner-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = uc.RecordSale(ctx, rep, "")
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	view, err := uc.GetCart(ctx, rep)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.Empty(t, rec.Events())

	require.NoError(t, uc.CancelCart(ctx, rep))
	view, err = uc.GetCart(ctx, rep)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestRecordSale_Idempotency(t *testing.T) {
	f := newFixture(t)
	rice := f.seed(t, "Rice Bag", 10, "25")
	mr := miniredis.RunT(t)
	rc := &cache.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { rc.Close() })
	uc, _, _ := newUseCase(t, f, rc)
	ctx := context.Background()

	_, err := uc.RecordSale(ctx, rep, "req-1")
	assert.ErrorIs(t, err, apperror.ErrEmptyCart)
	assert.Zero(t, mr.CommandCount(), "empty cart never touches redis")

	_, err = uc.AddToCart(ctx, rep, "Rice Bag", 1)
	require.NoError(t, err)
	_, err = f.inventory.AdjustStockWithMovement(ctx, "shop-1", rice.ID, -10, &model.InventoryMovement{
		ID: uuid.NewString(), MovementType: model.MovementAdjustment, CreatedBy: "owner-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = uc.RecordSale(ctx, rep, "req-1")
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.False(t, mr.Exists("sale:idempotency:shop-1:rep-1:req-1"), "failed attempt releases the key")

	_, err = f.inventory.AdjustStockWithMovement(ctx, "shop-1", rice.ID, 10, &model.InventoryMovement{
		ID: uuid.NewString(), MovementType: model.MovementAdjustment, CreatedBy: "owner-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = uc.RecordSale(ctx, rep, "req-1")
	require.NoError(t, err)

	_, err = uc.AddToCart(ctx, rep, "Rice Bag", 1)
	require.NoError(t, err)
	_, err = uc.RecordSale(ctx, rep, "req-1")
	assert.ErrorIs(t, err, apperror.ErrDuplicateRequest)

	view, err := uc.GetCart(ctx, rep)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, 1, f.saleCount(t))
}

func TestListTodayForRep(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Rice Bag", 100, "25")

	// 23:30 UTC on March 9 is 00:30 on March 10 in Lagos.
	clock := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	uc, _, _ := newUseCase(t, f, nil, WithClock(now))
	ctx := context.Background()

	sell := func(s auth.Session, qty int) {
		_, err := uc.AddToCart(ctx, s, "Rice Bag", qty)
		require.NoError(t, err)
		_, err = uc.RecordSale(ctx, s, "")
		require.NoError(t, err)
	}

	clock = time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC) // 23:00 March 9 Lagos
	sell(rep, 1)
	clock = time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	sell(rep, 2)
	sell(rep, 4)
	sell(rep2, 8)

	day, err := uc.ListTodayForRep(ctx, rep, "")
	require.NoError(t, err)
	assert.Equal(t, 2, day.Count)
	assert.True(t, decimal.NewFromInt(150).Equal(day.Total), day.Total.String())

	day, err = uc.ListTodayForRep(ctx, owner, "rep-2")
	require.NoError(t, err)
	assert.Equal(t, 1, day.Count)

	_, err = uc.ListTodayForRep(ctx, rep, "rep-2")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDayRange(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	from, to := sale.DayRange(time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC), lagos)
	assert.Equal(t, time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), to)
}
