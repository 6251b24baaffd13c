package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/auth"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/staff"
	"github.com/fekuna/omnipos-retail-service/internal/staff/dto"
	"github.com/fekuna/omnipos-retail-service/internal/staff/repository"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

func setup(t *testing.T, opts ...Option) staff.UseCase {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "staff.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	return NewStaffUseCase(repository.NewPGRepository(db), 5*time.Second, logger.NewNop(), opts...)
}

func registerShop(t *testing.T, uc staff.UseCase, ownerID, email string) auth.Session {
	t.Helper()
	_, owner, err := uc.RegisterShop(context.Background(), &dto.RegisterShopInput{
		OwnerUserID: ownerID,
		OwnerName:   "Ada",
		Email:       email,
		ShopName:    "Corner Store",
	})
	require.NoError(t, err)
	return auth.Session{UserID: owner.ID, ShopID: owner.ShopID, Role: owner.Role}
}

func TestRegisterShop(t *testing.T) {
	uc := setup(t)
	ctx := context.Background()

	shop, owner, err := uc.RegisterShop(ctx, &dto.RegisterShopInput{
		OwnerUserID: "owner-1",
		OwnerName:   "Ada",
		Email:       " Ada@Example.com ",
		ShopName:    "Corner Store",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", shop.OwnerID)
	assert.Equal(t, "ada@example.com", owner.Email)
	assert.Equal(t, model.RoleOwner, owner.Role)

	s, err := uc.ResolveSession(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, auth.Session{UserID: "owner-1", ShopID: shop.ID, Role: model.RoleOwner}, s)

	_, _, err = uc.RegisterShop(ctx, &dto.RegisterShopInput{
		OwnerUserID: "owner-2", OwnerName: "Bo", Email: "ada@example.com", ShopName: "Other",
	})
	assert.ErrorIs(t, err, apperror.ErrAlreadyExists)

	_, _, err = uc.RegisterShop(ctx, &dto.RegisterShopInput{
		OwnerUserID: "owner-3", OwnerName: "Cy", Email: "not-an-email", ShopName: "Other",
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)

	_, _, err = uc.RegisterShop(ctx, &dto.RegisterShopInput{OwnerName: "Cy", Email: "c@example.com", ShopName: "Other"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAddAndRemoveRep(t *testing.T) {
	uc := setup(t)
	ctx := context.Background()
	owner := registerShop(t, uc, "owner-1", "ada@example.com")

	rep, err := uc.AddRep(ctx, owner, &dto.AddRepInput{UserID: "rep-1", Name: "Tunde", Email: "tunde@example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSalesRep, rep.Role)
	assert.Equal(t, owner.ShopID, rep.ShopID)

	generated, err := uc.AddRep(ctx, owner, &dto.AddRepInput{Name: "Chi", Email: "chi@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	_, err = uc.AddRep(ctx, owner, &dto.AddRepInput{Name: "Dup", Email: "TUNDE@example.com"})
	assert.ErrorIs(t, err, apperror.ErrAlreadyExists)

	repSession, err := uc.ResolveSession(ctx, "rep-1")
	require.NoError(t, err)
	_, err = uc.AddRep(ctx, repSession, &dto.AddRepInput{Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	members, err := uc.ListStaff(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.Equal(t, model.RoleOwner, members[0].Role)

	assert.ErrorIs(t, uc.RemoveRep(ctx, owner, owner.UserID), apperror.ErrForbidden)
	require.NoError(t, uc.RemoveRep(ctx, owner, "rep-1"))
	assert.ErrorIs(t, uc.RemoveRep(ctx, owner, "rep-1"), apperror.ErrNotFound)

	_, err = uc.ResolveSession(ctx, "rep-1")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRemoveRep_RunsRemovalHook(t *testing.T) {
	var removed []string
	uc := setup(t, WithRemovalHook(func(staffID string) { removed = append(removed, staffID) }))
	ctx := context.Background()
	owner := registerShop(t, uc, "owner-1", "ada@example.com")

	_, err := uc.AddRep(ctx, owner, &dto.AddRepInput{UserID: "rep-1", Name: "Tunde", Email: "tunde@example.com"})
	require.NoError(t, err)

	assert.Error(t, uc.RemoveRep(ctx, owner, "ghost"))
	assert.Empty(t, removed)

	require.NoError(t, uc.RemoveRep(ctx, owner, "rep-1"))
	assert.Equal(t, []string{"rep-1"}, removed)
}

func TestRemoveRep_OtherShop(t *testing.T) {
	uc := setup(t)
	ctx := context.Background()
	ownerA := registerShop(t, uc, "owner-a", "a@example.com")
	ownerB := registerShop(t, uc, "owner-b", "b@example.com")

	_, err := uc.AddRep(ctx, ownerA, &dto.AddRepInput{UserID: "rep-a", Name: "A Rep", Email: "rep-a@example.com"})
	require.NoError(t, err)

	assert.ErrorIs(t, uc.RemoveRep(ctx, ownerB, "rep-a"), apperror.ErrNotFound)

	members, err := uc.ListStaff(ctx, ownerB)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestResolveSession_Unknown(t *testing.T) {
	uc := setup(t)

	_, err := uc.ResolveSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = uc.ResolveSession(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
