package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/reconciliation"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/rpc"
)

const ServiceName = "omnipos.retail.v1.ReconciliationService"

type ReconcileRequest struct {
	RepID        string `json:"rep_id"`
	ReportedCash string `json:"reported_cash"`
	Note         string `json:"note,omitempty"`
}

type ReconcileResponse struct {
	RepID            string    `json:"rep_id"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	SystemTotal      string    `json:"system_total"`
	TransactionCount int       `json:"transaction_count"`
	ReportedCash     string    `json:"reported_cash"`
	Difference       string    `json:"difference"`
	Match            bool      `json:"match"`
}

type ReconciliationHandler struct {
	uc       reconciliation.UseCase
	sessions auth.Resolver
	logger   logger.ZapLogger
}

func NewReconciliationHandler(uc reconciliation.UseCase, sessions auth.Resolver, log logger.ZapLogger) *ReconciliationHandler {
	return &ReconciliationHandler{uc: uc, sessions: sessions, logger: log}
}

func (h *ReconciliationHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.Service(ServiceName,
		rpc.Unary(ServiceName, "Reconcile", h.Reconcile),
		rpc.Unary(ServiceName, "Approve", h.Approve),
		rpc.Unary(ServiceName, "Dispute", h.Dispute),
	)
}

type decideFunc func(ctx context.Context, s auth.Session, repID string, cash decimal.Decimal, note string) (*model.Reconciliation, error)

func (h *ReconciliationHandler) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	return h.handle(ctx, req, func(ctx context.Context, s auth.Session, repID string, cash decimal.Decimal, _ string) (*model.Reconciliation, error) {
		return h.uc.Reconcile(ctx, s, repID, cash)
	})
}

func (h *ReconciliationHandler) Approve(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	return h.handle(ctx, req, h.uc.Approve)
}

func (h *ReconciliationHandler) Dispute(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	return h.handle(ctx, req, h.uc.Dispute)
}

func (h *ReconciliationHandler) handle(ctx context.Context, req *ReconcileRequest, fn decideFunc) (*ReconcileResponse, error) {
	s, err := auth.FromContext(ctx, h.sessions)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	cash, err := decimal.NewFromString(req.ReportedCash)
	if err != nil {
		return nil, apperror.ToStatus(apperror.InvalidArgument("reported_cash: %q is not a decimal", req.ReportedCash))
	}

	r, err := fn(ctx, s, req.RepID, cash, req.Note)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	return &ReconcileResponse{
		RepID:            r.RepID,
		From:             r.From,
		To:               r.To,
		SystemTotal:      r.SystemTotal.StringFixed(model.MinorUnits),
		TransactionCount: r.TransactionCount,
		ReportedCash:     r.ReportedCash.StringFixed(model.MinorUnits),
		Difference:       r.Difference.StringFixed(model.MinorUnits),
		Match:            r.Match,
	}, nil
}
