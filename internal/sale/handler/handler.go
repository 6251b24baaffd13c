package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
	"github.com/fekuna/omnipos-retail-service/internal/sale/dto"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/rpc"
)

const ServiceName = "omnipos.retail.v1.SaleService"

type Empty struct{}

type CartLine struct {
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type CartResponse struct {
	Lines []CartLine `json:"lines"`
	Total string     `json:"total"`
}

type AddToCartRequest struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

type RecordSaleRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

type SaleLine struct {
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type Sale struct {
	ID        string     `json:"id"`
	RepID     string     `json:"rep_id"`
	Lines     []SaleLine `json:"lines"`
	Total     string     `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
}

type GetSaleRequest struct {
	SaleID string `json:"sale_id"`
}

type ListTodaySalesRequest struct {
	RepID string `json:"rep_id,omitempty"`
}

type DailySalesResponse struct {
	RepID string    `json:"rep_id"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Sales []*Sale   `json:"sales"`
	Total string    `json:"total"`
	Count int       `json:"count"`
}

type SaleHandler struct {
	uc       sale.UseCase
	sessions auth.Resolver
	logger   logger.ZapLogger
}

func NewSaleHandler(uc sale.UseCase, sessions auth.Resolver, log logger.ZapLogger) *SaleHandler {
	return &SaleHandler{uc: uc, sessions: sessions, logger: log}
}

func (h *SaleHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.Service(ServiceName,
		rpc.Unary(ServiceName, "AddToCart", h.AddToCart),
		rpc.Unary(ServiceName, "GetCart", h.GetCart),
		rpc.Unary(ServiceName, "CancelCart", h.CancelCart),
		rpc.Unary(ServiceName, "RecordSale", h.RecordSale),
		rpc.Unary(ServiceName, "GetSale", h.GetSale),
		rpc.Unary(ServiceName, "ListTodaySales", h.ListTodaySales),
	)
}

func (h *SaleHandler) session(ctx context.Context) (auth.Session, error) {
	s, err := auth.FromContext(ctx, h.sessions)
	if err != nil {
		return auth.Session{}, apperror.ToStatus(err)
	}
	return s, nil
}

func (h *SaleHandler) fail(method string, err error) error {
	if !apperror.IsKnown(err) || apperror.Retryable(err) {
		h.logger.Error("sale request failed", zap.String("method", method), zap.Error(err))
	}
	return apperror.ToStatus(err)
}

func (h *SaleHandler) AddToCart(ctx context.Context, req *AddToCartRequest) (*CartResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.uc.AddToCart(ctx, s, req.ItemName, req.Quantity)
	if err != nil {
		return nil, h.fail("AddToCart", err)
	}
	return mapCart(view), nil
}

func (h *SaleHandler) GetCart(ctx context.Context, _ *Empty) (*CartResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.uc.GetCart(ctx, s)
	if err != nil {
		return nil, h.fail("GetCart", err)
	}
	return mapCart(view), nil
}

func (h *SaleHandler) CancelCart(ctx context.Context, _ *Empty) (*Empty, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.uc.CancelCart(ctx, s); err != nil {
		return nil, h.fail("CancelCart", err)
	}
	return &Empty{}, nil
}

func (h *SaleHandler) RecordSale(ctx context.Context, req *RecordSaleRequest) (*Sale, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := h.uc.RecordSale(ctx, s, req.RequestID)
	if err != nil {
		return nil, h.fail("RecordSale", err)
	}
	return mapSale(rec), nil
}

func (h *SaleHandler) GetSale(ctx context.Context, req *GetSaleRequest) (*Sale, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := h.uc.GetSale(ctx, s, req.SaleID)
	if err != nil {
		return nil, h.fail("GetSale", err)
	}
	return mapSale(rec), nil
}

func (h *SaleHandler) ListTodaySales(ctx context.Context, req *ListTodaySalesRequest) (*DailySalesResponse, error) {
	s, err := h.session(ctx)
	if err != nil {
		return nil, err
	}
	day, err := h.uc.ListTodayForRep(ctx, s, req.RepID)
	if err != nil {
		return nil, h.fail("ListTodaySales", err)
	}

	sales := make([]*Sale, len(day.Sales))
	for i := range day.Sales {
		sales[i] = mapSale(&day.Sales[i])
	}
	return &DailySalesResponse{
		RepID: day.RepID,
		From:  day.From,
		To:    day.To,
		Sales: sales,
		Total: day.Total.StringFixed(model.MinorUnits),
		Count: day.Count,
	}, nil
}

func mapCart(v *dto.CartView) *CartResponse {
	lines := make([]CartLine, len(v.Lines))
	for i, l := range v.Lines {
		lines[i] = CartLine{
			ItemID:    l.ItemID,
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(model.MinorUnits),
			Subtotal:  l.Subtotal().StringFixed(model.MinorUnits),
		}
	}
	return &CartResponse{Lines: lines, Total: v.Total.StringFixed(model.MinorUnits)}
}

func mapSale(s *model.Sale) *Sale {
	lines := make([]SaleLine, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SaleLine{
			ItemID:    l.ItemID,
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(model.MinorUnits),
		}
	}
	return &Sale{
		ID:        s.ID,
		RepID:     s.RepID,
		Lines:     lines,
		Total:     s.Total.StringFixed(model.MinorUnits),
		CreatedAt: s.CreatedAt,
	}
}
