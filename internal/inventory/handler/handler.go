package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/inventory"
	"github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/rpc"
)

const ServiceName = "omnipos.retail.v1.InventoryService"

type InventoryHandler struct {
	uc       inventory.UseCase
	sessions auth.Resolver
	logger   logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, sessions auth.Resolver, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:       uc,
		sessions: sessions,
		logger:   log,
	}
}

func (h *InventoryHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.Service(ServiceName,
		rpc.Unary(ServiceName, "AddStock", h.AddStock),
		rpc.Unary(ServiceName, "AdjustStock", h.AdjustStock),
		rpc.Unary(ServiceName, "UpdateItem", h.UpdateItem),
		rpc.Unary(ServiceName, "GetItem", h.GetItem),
		rpc.Unary(ServiceName, "FindItemByName", h.FindItemByName),
		rpc.Unary(ServiceName, "ListInventory", h.ListInventory),
		rpc.Unary(ServiceName, "ListLowStock", h.ListLowStock),
		rpc.Unary(ServiceName, "SearchInventory", h.SearchInventory),
		rpc.Unary(ServiceName, "ListMovements", h.ListMovements),
	)
}

func (h *InventoryHandler) session(ctx context.Context) (auth.Session, error) {
	s, err := auth.FromContext(ctx, h.sessions)
	if err != nil {
		return auth.Session{}, apperror.ToStatus(err)
	}
	return s, nil
}

func (h *InventoryHandler) fail(method string, err error) error {
	if !apperror.IsKnown(err) || apperror.Retryable(err) {
		h.logger.Error("inventory request failed", zap.String("method", method), zap.Error(err))
	}
	return apperror.ToStatus(err)
}

func (h *InventoryHandler) AddStock(ctx context.Context, req *AddStockRequest) (*InventoryItem, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	unitPrice, err := parsePrice("unit_price", req.UnitPrice)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	costPrice, err := parsePrice("cost_price", req.CostPrice)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}

	item, err := h.uc.AddStock(ctx, s, &dto.AddStockInput{
		Name:              req.Name,
		Quantity:          req.Quantity,
		UnitPrice:         unitPrice,
		CostPrice:         costPrice,
		LowStockThreshold: req.LowStockThreshold,
		Notes:             req.Notes,
	})
	if err != nil {
		return nil, h.fail("AddStock", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*InventoryItem, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	item, err := h.uc.AdjustStock(ctx, s, &dto.AdjustStockInput{
		ItemID: req.ItemID,
		Delta:  req.Delta,
		Reason: req.Reason,
	})
	if err != nil {
		return nil, h.fail("AdjustStock", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) UpdateItem(ctx context.Context, req *UpdateItemRequest) (*InventoryItem, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	unitPrice, err := parsePrice("unit_price", req.UnitPrice)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	costPrice, err := parsePrice("cost_price", req.CostPrice)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}

	item, err := h.uc.UpdateItem(ctx, s, &dto.UpdateItemInput{
		ItemID:            req.ItemID,
		UnitPrice:         unitPrice,
		CostPrice:         costPrice,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		return nil, h.fail("UpdateItem", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) GetItem(ctx context.Context, req *GetItemRequest) (*InventoryItem, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	item, err := h.uc.GetItem(ctx, s, req.ItemID)
	if err != nil {
		return nil, h.fail("GetItem", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) FindItemByName(ctx context.Context, req *FindItemByNameRequest) (*InventoryItem, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	item, err := h.uc.FindByName(ctx, s, req.Name)
	if err != nil {
		return nil, h.fail("FindItemByName", err)
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) ListInventory(ctx context.Context, req *ListInventoryRequest) (*ListInventoryResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	items, count, err := h.uc.ListInventory(ctx, s, &dto.InventoryFilters{
		NameQuery: req.NameQuery,
		LowStock:  req.LowStock,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		return nil, h.fail("ListInventory", err)
	}
	return &ListInventoryResponse{Items: mapItems(items), Total: count}, nil
}

func (h *InventoryHandler) ListLowStock(ctx context.Context, req *ListInventoryRequest) (*ListInventoryResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	items, count, err := h.uc.ListLowStock(ctx, s, req.Page, req.PageSize)
	if err != nil {
		return nil, h.fail("ListLowStock", err)
	}
	return &ListInventoryResponse{Items: mapItems(items), Total: count}, nil
}

func (h *InventoryHandler) SearchInventory(ctx context.Context, req *SearchInventoryRequest) (*SearchInventoryResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	items, err := h.uc.SearchInventory(ctx, s, req.Query, req.Limit)
	if err != nil {
		return nil, h.fail("SearchInventory", err)
	}
	return &SearchInventoryResponse{Items: mapItems(items)}, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *ListMovementsRequest) (*ListMovementsResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	mvs, count, err := h.uc.ListMovements(ctx, s, &dto.MovementFilters{
		ItemID:       req.ItemID,
		MovementType: req.MovementType,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Page:         req.Page,
		PageSize:     req.PageSize,
	})
	if err != nil {
		return nil, h.fail("ListMovements", err)
	}

	out := make([]*InventoryMovement, len(mvs))
	for i := range mvs {
		out[i] = mapMovement(&mvs[i])
	}
	return &ListMovementsResponse{Movements: out, Total: count}, nil
}

// parsePrice parses an optional decimal string field.
func parsePrice(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, apperror.InvalidArgument("%s: %q is not a decimal", field, *s)
	}
	return &d, nil
}

func mapItem(m *model.InventoryItem) *InventoryItem {
	if m == nil {
		return nil
	}
	return &InventoryItem{
		ID:                m.ID,
		Name:              m.Name,
		Quantity:          m.Quantity,
		UnitPrice:         m.UnitPrice.StringFixed(model.MinorUnits),
		CostPrice:         m.CostPrice.StringFixed(model.MinorUnits),
		ProfitPerUnit:     m.ProfitPerUnit().StringFixed(model.MinorUnits),
		LowStockThreshold: m.LowStockThreshold,
		IsLowStock:        m.IsLowStock(),
		UpdatedAt:         m.UpdatedAt,
	}
}

func mapItems(items []model.InventoryItem) []*InventoryItem {
	out := make([]*InventoryItem, len(items))
	for i := range items {
		out[i] = mapItem(&items[i])
	}
	return out
}

func mapMovement(m *model.InventoryMovement) *InventoryMovement {
	refID := ""
	if m.ReferenceID != nil {
		refID = *m.ReferenceID
	}
	return &InventoryMovement{
		ID:             m.ID,
		ItemID:         m.ItemID,
		MovementType:   string(m.MovementType),
		QuantityChange: m.QuantityChange,
		QuantityAfter:  m.QuantityAfter,
		ReferenceID:    refID,
		Notes:          m.Notes,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}
