package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/events"
	"github.com/fekuna/omnipos-retail-service/internal/inventory"
	"github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/pkg/cache"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/search"
)

const (
	lockTTL        = 5 * time.Second
	lockAttempts   = 3
	lockRetryDelay = 100 * time.Millisecond
	defaultLimit   = 20

	indexMapping = `{
		"mappings": {
			"properties": {
				"shop_id": { "type": "keyword" },
				"name": { "type": "text" },
				"quantity": { "type": "integer" },
				"unit_price": { "type": "keyword" },
				"updated_at": { "type": "date" }
			}
		}
	}`
)

type Config struct {
	StoreTimeout time.Duration
	CacheTTL     time.Duration
	Index        string
}

type inventoryUseCase struct {
	repo      inventory.Repository
	cache     *cache.RedisClient
	es        *search.Client
	publisher events.Publisher
	cfg       Config
	logger    logger.ZapLogger

	indexOnce sync.Once
}

// NewInventoryUseCase wires the inventory service. cache and es may be nil,
// in which case listings are uncached and search falls back to SQL.
func NewInventoryUseCase(repo inventory.Repository, cache *cache.RedisClient, es *search.Client, publisher events.Publisher, cfg Config, log logger.ZapLogger) inventory.UseCase {
	if cfg.Index == "" {
		cfg.Index = "inventory"
	}
	return &inventoryUseCase{
		repo:      repo,
		cache:     cache,
		es:        es,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
	}
}

func (uc *inventoryUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.cfg.StoreTimeout)
}

func (uc *inventoryUseCase) AddStock(ctx context.Context, s auth.Session, input *dto.AddStockInput) (*model.InventoryItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.InvalidArgument("item name is required")
	}
	if input.Quantity <= 0 {
		return nil, apperror.InvalidArgument("quantity must be positive, got %d", input.Quantity)
	}
	if err := validatePrices(input.UnitPrice, input.CostPrice, input.LowStockThreshold); err != nil {
		return nil, err
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	if input.UnitPrice == nil {
		existing, err := uc.repo.FindByName(ctx, s.ShopID, name)
		if err != nil {
			return nil, apperror.Upstream(err)
		}
		if existing == nil {
			return nil, apperror.InvalidArgument("unit price is required for new item %q", name)
		}
	}

	item, err := uc.repo.AddOrIncrement(ctx, &dto.StockUpsert{
		ID:                uuid.New().String(),
		ShopID:            s.ShopID,
		Name:              name,
		Quantity:          input.Quantity,
		UnitPrice:         input.UnitPrice,
		CostPrice:         input.CostPrice,
		LowStockThreshold: input.LowStockThreshold,
		MovementID:        uuid.New().String(),
		Notes:             input.Notes,
		CreatedBy:         s.UserID,
		Now:               time.Now().UTC(),
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}

	uc.logger.Info("Stock added",
		zap.String("shop_id", s.ShopID),
		zap.String("item_id", item.ID),
		zap.Int("quantity", input.Quantity),
		zap.Int("quantity_after", item.Quantity),
	)
	uc.afterStockChange(ctx, s.ShopID, []string{item.ID}, string(model.MovementRestock))
	return item, nil
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, s auth.Session, input *dto.AdjustStockInput) (*model.InventoryItem, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, err
	}
	if input.Delta == 0 {
		return nil, apperror.InvalidArgument("adjustment must be non-zero")
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	release, err := uc.lock(ctx, fmt.Sprintf("lock:inventory:%s:%s", s.ShopID, input.ItemID))
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := uc.repo.AdjustStockWithMovement(ctx, s.ShopID, input.ItemID, input.Delta, &model.InventoryMovement{
		ID:           uuid.New().String(),
		MovementType: model.MovementAdjustment,
		Notes:        input.Reason,
		CreatedBy:    s.UserID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}

	uc.logger.Info("Stock adjusted",
		zap.String("shop_id", s.ShopID),
		zap.String("item_id", item.ID),
		zap.Int("delta", input.Delta),
		zap.Int("quantity_after", item.Quantity),
	)
	uc.afterStockChange(ctx, s.ShopID, []string{item.ID}, string(model.MovementAdjustment))
	return item, nil
}

// lock takes the per-item Redis lock. Without Redis the conditional update
// in the repository is the only guard.
func (uc *inventoryUseCase) lock(ctx context.Context, key string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	value := uuid.New().String()
	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.cache.AcquireLock(ctx, key, value, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return func() {
				if err := uc.cache.ReleaseLock(context.WithoutCancel(ctx), key, value); err != nil {
					uc.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, apperror.Upstream(ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: item is being adjusted, try again", apperror.ErrConflict)
}

func (uc *inventoryUseCase) UpdateItem(ctx context.Context, s auth.Session, input *dto.UpdateItemInput) (*model.InventoryItem, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, err
	}
	if err := validatePrices(input.UnitPrice, input.CostPrice, input.LowStockThreshold); err != nil {
		return nil, err
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	item, err := uc.repo.FindByID(ctx, s.ShopID, input.ItemID)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if item == nil {
		return nil, apperror.NotFound("item %s", input.ItemID)
	}

	if input.UnitPrice != nil {
		item.UnitPrice = *input.UnitPrice
	}
	if input.CostPrice != nil {
		item.CostPrice = *input.CostPrice
	}
	if input.LowStockThreshold != nil {
		item.LowStockThreshold = *input.LowStockThreshold
	}
	item.UpdatedAt = time.Now().UTC()

	if err := uc.repo.UpdateItem(ctx, item); err != nil {
		return nil, apperror.Upstream(err)
	}

	if err := uc.Refresh(ctx, s.ShopID, []string{item.ID}); err != nil {
		uc.logger.Warn("refresh after update failed", zap.String("item_id", item.ID), zap.Error(err))
	}
	uc.publisher.Publish(ctx, events.TypeItemUpdated, s.ShopID, events.ItemUpdated{ItemID: item.ID})
	return item, nil
}

func validatePrices(unit, cost *decimal.Decimal, threshold *int) error {
	if unit != nil && !model.ValidPrice(*unit) {
		return apperror.InvalidArgument("invalid unit price %s", unit.String())
	}
	if cost != nil && !model.ValidPrice(*cost) {
		return apperror.InvalidArgument("invalid cost price %s", cost.String())
	}
	if threshold != nil && *threshold < 0 {
		return apperror.InvalidArgument("low stock threshold must not be negative")
	}
	return nil
}

func (uc *inventoryUseCase) afterStockChange(ctx context.Context, shopID string, itemIDs []string, reason string) {
	if err := uc.Refresh(ctx, shopID, itemIDs); err != nil {
		uc.logger.Warn("refresh after stock change failed", zap.String("shop_id", shopID), zap.Error(err))
	}
	uc.publisher.Publish(ctx, events.TypeStockChanged, shopID, events.StockChanged{ItemIDs: itemIDs, Reason: reason})
}

func (uc *inventoryUseCase) GetItem(ctx context.Context, s auth.Session, itemID string) (*model.InventoryItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	item, err := uc.repo.FindByID(ctx, s.ShopID, itemID)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if item == nil {
		return nil, apperror.NotFound("item %s", itemID)
	}
	return item, nil
}

func (uc *inventoryUseCase) FindByName(ctx context.Context, s auth.Session, name string) (*model.InventoryItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	item, err := uc.repo.FindByName(ctx, s.ShopID, name)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if item == nil {
		return nil, apperror.NotFound("item %q", name)
	}
	return item, nil
}

type cachedList struct {
	Items []model.InventoryItem `json:"items"`
	Count int                   `json:"count"`
}

func (uc *inventoryUseCase) ListInventory(ctx context.Context, s auth.Session, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	if err := s.Validate(); err != nil {
		return nil, 0, err
	}
	f := *filters
	f.ShopID = s.ShopID

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	cacheKey := ""
	if uc.cache != nil {
		key, err := generateCacheKey(&f)
		if err == nil {
			cacheKey = key
			var cached cachedList
			hit, err := uc.cache.GetJSON(ctx, cacheKey, &cached)
			if err != nil {
				uc.logger.Warn("inventory cache read failed", zap.Error(err))
			}
			if hit {
				return cached.Items, cached.Count, nil
			}
		}
	}

	items, count, err := uc.repo.FindAll(ctx, &f)
	if err != nil {
		return nil, 0, apperror.Upstream(err)
	}

	if cacheKey != "" {
		if err := uc.cache.SetJSON(ctx, cacheKey, cachedList{Items: items, Count: count}, uc.cfg.CacheTTL); err != nil {
			uc.logger.Warn("inventory cache write failed", zap.Error(err))
		}
	}
	return items, count, nil
}

func generateCacheKey(filters *dto.InventoryFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%x", listCachePrefix(filters.ShopID), md5.Sum(data)), nil
}

func listCachePrefix(shopID string) string {
	return fmt.Sprintf("inventory:list:%s:", shopID)
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, s auth.Session, page, pageSize int) ([]model.InventoryItem, int, error) {
	return uc.ListInventory(ctx, s, &dto.InventoryFilters{
		LowStock: true,
		Page:     page,
		PageSize: pageSize,
	})
}

// SearchInventory matches items by name. Elasticsearch is preferred; SQL
// substring matching is used when it is disabled or failing.
func (uc *inventoryUseCase) SearchInventory(ctx context.Context, s auth.Session, query string, limit int) ([]model.InventoryItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.InventoryItem{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	if uc.es != nil {
		items, err := uc.searchElastic(ctx, s.ShopID, query, limit)
		if err == nil {
			return items, nil
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	items, _, err := uc.repo.FindAll(ctx, &dto.InventoryFilters{
		ShopID:    s.ShopID,
		NameQuery: query,
		Page:      1,
		PageSize:  limit,
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return items, nil
}

func (uc *inventoryUseCase) searchElastic(ctx context.Context, shopID, query string, limit int) ([]model.InventoryItem, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{
						"match": map[string]interface{}{
							"name": map[string]interface{}{
								"query":     query,
								"fuzziness": "AUTO",
							},
						},
					},
				},
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"shop_id": shopID}},
				},
			},
		},
		"size": limit,
	}

	ids, err := uc.es.Search(ctx, uc.cfg.Index, q)
	if err != nil {
		return nil, err
	}

	found, err := uc.repo.BatchGetByIDs(ctx, shopID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.InventoryItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	items := make([]model.InventoryItem, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, s auth.Session, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, 0, err
	}
	f := *filters
	f.ShopID = s.ShopID

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	mvs, count, err := uc.repo.ListMovements(ctx, &f)
	if err != nil {
		return nil, 0, apperror.Upstream(err)
	}
	return mvs, count, nil
}

type itemDocument struct {
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (uc *inventoryUseCase) Refresh(ctx context.Context, shopID string, itemIDs []string) error {
	var errs []error

	if uc.cache != nil {
		if _, err := uc.cache.DeletePattern(ctx, listCachePrefix(shopID)+"*"); err != nil {
			errs = append(errs, fmt.Errorf("invalidate cache: %w", err))
		}
	}

	if uc.es != nil && len(itemIDs) > 0 {
		uc.indexOnce.Do(func() {
			if err := uc.es.CreateIndex(ctx, uc.cfg.Index, indexMapping); err != nil {
				uc.logger.Warn("failed to create search index", zap.String("index", uc.cfg.Index), zap.Error(err))
			}
		})

		items, err := uc.repo.BatchGetByIDs(ctx, shopID, itemIDs)
		if err != nil {
			errs = append(errs, fmt.Errorf("load items for reindex: %w", err))
		}
		for _, item := range items {
			doc := itemDocument{
				ShopID:    item.ShopID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice.StringFixed(model.MinorUnits),
				UpdatedAt: item.UpdatedAt,
			}
			if err := uc.es.Index(ctx, uc.cfg.Index, item.ID, doc); err != nil {
				errs = append(errs, fmt.Errorf("index item %s: %w", item.ID, err))
			}
		}
	}

	return errors.Join(errs...)
}
