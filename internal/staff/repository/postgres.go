package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const (
	insertShop  = `INSERT INTO shops (id, name, owner_id, created_at) VALUES (:id, :name, :owner_id, :created_at)`
	insertStaff = `
		INSERT INTO staff (id, shop_id, name, email, role, created_at)
		VALUES (:id, :shop_id, :name, :email, :role, :created_at)
	`
	staffColumns = `id, shop_id, name, email, role, created_at`
)

func (r *PGRepository) CreateShopWithOwner(ctx context.Context, shop *model.Shop, owner *model.StaffMember) error {
	return database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertShop, shop); err != nil {
			return mapInsertErr("shop", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertStaff, owner); err != nil {
			return mapInsertErr("staff member", err)
		}
		return nil
	})
}

func (r *PGRepository) FindShop(ctx context.Context, id string) (*model.Shop, error) {
	var shop model.Shop
	err := r.DB.GetContext(ctx, &shop, r.DB.Rebind(`SELECT id, name, owner_id, created_at FROM shops WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *PGRepository) Create(ctx context.Context, m *model.StaffMember) error {
	if _, err := r.DB.NamedExecContext(ctx, insertStaff, m); err != nil {
		return mapInsertErr("staff member", err)
	}
	return nil
}

func mapInsertErr(what string, err error) error {
	if database.IsUniqueViolation(err) {
		return apperror.AlreadyExists("%s already exists", what)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.StaffMember, error) {
	var m model.StaffMember
	err := r.DB.GetContext(ctx, &m, r.DB.Rebind(`SELECT `+staffColumns+` FROM staff WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *PGRepository) ListByShop(ctx context.Context, shopID string) ([]model.StaffMember, error) {
	members := []model.StaffMember{}
	err := r.DB.SelectContext(ctx, &members, r.DB.Rebind(`
		SELECT `+staffColumns+` FROM staff WHERE shop_id = ? ORDER BY role ASC, name ASC
	`), shopID)
	return members, err
}

func (r *PGRepository) Delete(ctx context.Context, shopID, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM staff WHERE id = ? AND shop_id = ?`), id, shopID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
