package usecase

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/staff"
	"github.com/fekuna/omnipos-retail-service/internal/staff/dto"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

type staffUseCase struct {
	repo         staff.Repository
	storeTimeout time.Duration
	onRemove     []func(staffID string)
	logger       logger.ZapLogger
}

type Option func(*staffUseCase)

// WithRemovalHook registers fn to run after a rep is removed.
func WithRemovalHook(fn func(staffID string)) Option {
	return func(uc *staffUseCase) {
		uc.onRemove = append(uc.onRemove, fn)
	}
}

func NewStaffUseCase(repo staff.Repository, storeTimeout time.Duration, log logger.ZapLogger, opts ...Option) staff.UseCase {
	uc := &staffUseCase{
		repo:         repo,
		storeTimeout: storeTimeout,
		logger:       log,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *staffUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.storeTimeout)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperror.InvalidArgument("invalid email %q", email)
	}
	return email, nil
}

func (uc *staffUseCase) RegisterShop(ctx context.Context, input *dto.RegisterShopInput) (*model.Shop, *model.StaffMember, error) {
	if input.OwnerUserID == "" {
		return nil, nil, apperror.Unauthorized("missing caller identity")
	}
	shopName := strings.TrimSpace(input.ShopName)
	ownerName := strings.TrimSpace(input.OwnerName)
	if shopName == "" || ownerName == "" {
		return nil, nil, apperror.InvalidArgument("shop name and owner name are required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	shop := &model.Shop{
		ID:        uuid.New().String(),
		Name:      shopName,
		OwnerID:   input.OwnerUserID,
		CreatedAt: now,
	}
	owner := &model.StaffMember{
		ID:        input.OwnerUserID,
		ShopID:    shop.ID,
		Name:      ownerName,
		Email:     email,
		Role:      model.RoleOwner,
		CreatedAt: now,
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	if err := uc.repo.CreateShopWithOwner(ctx, shop, owner); err != nil {
		return nil, nil, apperror.Upstream(err)
	}

	uc.logger.Info("shop registered", zap.String("shop_id", shop.ID), zap.String("owner_id", owner.ID))
	return shop, owner, nil
}

func (uc *staffUseCase) AddRep(ctx context.Context, s auth.Session, input *dto.AddRepInput) (*model.StaffMember, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.InvalidArgument("name is required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	id := input.UserID
	if id == "" {
		id = uuid.New().String()
	}
	member := &model.StaffMember{
		ID:        id,
		ShopID:    s.ShopID,
		Name:      name,
		Email:     email,
		Role:      model.RoleSalesRep,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	if err := uc.repo.Create(ctx, member); err != nil {
		return nil, apperror.Upstream(err)
	}

	uc.logger.Info("sales rep added", zap.String("shop_id", s.ShopID), zap.String("staff_id", member.ID))
	return member, nil
}

func (uc *staffUseCase) ListStaff(ctx context.Context, s auth.Session) ([]model.StaffMember, error) {
	if err := s.RequireOwner(); err != nil {
		return nil, err
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	members, err := uc.repo.ListByShop(ctx, s.ShopID)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return members, nil
}

func (uc *staffUseCase) RemoveRep(ctx context.Context, s auth.Session, staffID string) error {
	if err := s.RequireOwner(); err != nil {
		return err
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	member, err := uc.repo.FindByID(ctx, staffID)
	if err != nil {
		return apperror.Upstream(err)
	}
	if member == nil || member.ShopID != s.ShopID {
		return apperror.NotFound("staff member %s", staffID)
	}
	if member.Role == model.RoleOwner {
		return apperror.Forbidden("the shop owner cannot be removed")
	}

	deleted, err := uc.repo.Delete(ctx, s.ShopID, staffID)
	if err != nil {
		return apperror.Upstream(err)
	}
	if !deleted {
		return apperror.NotFound("staff member %s", staffID)
	}
	for _, fn := range uc.onRemove {
		fn(staffID)
	}

	uc.logger.Info("sales rep removed", zap.String("shop_id", s.ShopID), zap.String("staff_id", staffID))
	return nil
}

func (uc *staffUseCase) ResolveSession(ctx context.Context, userID string) (auth.Session, error) {
	if userID == "" {
		return auth.Session{}, apperror.Unauthorized("missing caller identity")
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	member, err := uc.repo.FindByID(ctx, userID)
	if err != nil {
		return auth.Session{}, apperror.Upstream(err)
	}
	if member == nil {
		return auth.Session{}, apperror.Unauthorized("user %s has no shop profile", userID)
	}
	return auth.Session{UserID: member.ID, ShopID: member.ShopID, Role: member.Role}, nil
}
