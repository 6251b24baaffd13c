package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/staff"
	"github.com/fekuna/omnipos-retail-service/internal/staff/dto"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
	"github.com/fekuna/omnipos-retail-service/pkg/rpc"
)

const ServiceName = "omnipos.retail.v1.StaffService"

type Empty struct{}

type RegisterShopRequest struct {
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
	ShopName  string `json:"shop_name"`
}

type RegisterShopResponse struct {
	ShopID   string       `json:"shop_id"`
	ShopName string       `json:"shop_name"`
	Owner    *StaffMember `json:"owner"`
}

type AddRepRequest struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type RemoveRepRequest struct {
	StaffID string `json:"staff_id"`
}

type StaffMember struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type ListStaffResponse struct {
	Staff []*StaffMember `json:"staff"`
}

type StaffHandler struct {
	uc     staff.UseCase
	logger logger.ZapLogger
}

func NewStaffHandler(uc staff.UseCase, log logger.ZapLogger) *StaffHandler {
	return &StaffHandler{uc: uc, logger: log}
}

func (h *StaffHandler) ServiceDesc() *grpc.ServiceDesc {
	return rpc.Service(ServiceName,
		rpc.Unary(ServiceName, "RegisterShop", h.RegisterShop),
		rpc.Unary(ServiceName, "AddRep", h.AddRep),
		rpc.Unary(ServiceName, "ListStaff", h.ListStaff),
		rpc.Unary(ServiceName, "RemoveRep", h.RemoveRep),
	)
}

// RegisterShop runs before the caller has a profile, so it reads the raw
// identity instead of resolving a session.
func (h *StaffHandler) RegisterShop(ctx context.Context, req *RegisterShopRequest) (*RegisterShopResponse, error) {
	shop, owner, err := h.uc.RegisterShop(ctx, &dto.RegisterShopInput{
		OwnerUserID: auth.GetUserID(ctx),
		OwnerName:   req.OwnerName,
		Email:       req.Email,
		ShopName:    req.ShopName,
	})
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	return &RegisterShopResponse{ShopID: shop.ID, ShopName: shop.Name, Owner: mapMember(owner)}, nil
}

func (h *StaffHandler) AddRep(ctx context.Context, req *AddRepRequest) (*StaffMember, error) {
	s, err := auth.FromContext(ctx, h.uc)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	m, err := h.uc.AddRep(ctx, s, &dto.AddRepInput{UserID: req.UserID, Name: req.Name, Email: req.Email})
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	return mapMember(m), nil
}

func (h *StaffHandler) ListStaff(ctx context.Context, _ *Empty) (*ListStaffResponse, error) {
	s, err := auth.FromContext(ctx, h.uc)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	members, err := h.uc.ListStaff(ctx, s)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	resp := &ListStaffResponse{Staff: make([]*StaffMember, 0, len(members))}
	for i := range members {
		resp.Staff = append(resp.Staff, mapMember(&members[i]))
	}
	return resp, nil
}

func (h *StaffHandler) RemoveRep(ctx context.Context, req *RemoveRepRequest) (*Empty, error) {
	s, err := auth.FromContext(ctx, h.uc)
	if err != nil {
		return nil, apperror.ToStatus(err)
	}
	if err := h.uc.RemoveRep(ctx, s, req.StaffID); err != nil {
		return nil, apperror.ToStatus(err)
	}
	return &Empty{}, nil
}

func mapMember(m *model.StaffMember) *StaffMember {
	return &StaffMember{
		ID:        m.ID,
		ShopID:    m.ShopID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      string(m.Role),
		CreatedAt: m.CreatedAt,
	}
}
