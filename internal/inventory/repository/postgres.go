package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
)

// PGRepository is the sqlx inventory store. Queries are written with '?'
// placeholders and rebound, so the same code runs on Postgres and SQLite.
type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const itemColumns = `id, shop_id, name, name_key, quantity, unit_price_minor, cost_price_minor, low_stock_threshold, created_at, updated_at`

type itemRow struct {
	ID                string    `db:"id"`
	ShopID            string    `db:"shop_id"`
	Name              string    `db:"name"`
	NameKey           string    `db:"name_key"`
	Quantity          int       `db:"quantity"`
	UnitPriceMinor    int64     `db:"unit_price_minor"`
	CostPriceMinor    int64     `db:"cost_price_minor"`
	LowStockThreshold int       `db:"low_stock_threshold"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r itemRow) toModel() model.InventoryItem {
	return model.InventoryItem{
		ID:                r.ID,
		ShopID:            r.ShopID,
		Name:              r.Name,
		Quantity:          r.Quantity,
		UnitPrice:         model.FromMinor(r.UnitPriceMinor),
		CostPrice:         model.FromMinor(r.CostPriceMinor),
		LowStockThreshold: r.LowStockThreshold,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toModels(rows []itemRow) []model.InventoryItem {
	items := make([]model.InventoryItem, len(rows))
	for i, row := range rows {
		items[i] = row.toModel()
	}
	return items
}

func (r *PGRepository) FindByID(ctx context.Context, shopID, itemID string) (*model.InventoryItem, error) {
	return getItem(ctx, r.DB, `WHERE id = ? AND shop_id = ?`, itemID, shopID)
}

func (r *PGRepository) FindByName(ctx context.Context, shopID, name string) (*model.InventoryItem, error) {
	key := model.NameKey(name)
	if key == "" {
		return nil, nil
	}
	return getItem(ctx, r.DB, `WHERE shop_id = ? AND name_key = ?`, shopID, key)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getItem(ctx context.Context, q queryer, where string, args ...any) (*model.InventoryItem, error) {
	var row itemRow
	query := q.Rebind(`SELECT ` + itemColumns + ` FROM inventory ` + where)
	err := sqlx.GetContext(ctx, q, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	item := row.toModel()
	return &item, nil
}

func (r *PGRepository) BatchGetByIDs(ctx context.Context, shopID string, itemIDs []string) ([]model.InventoryItem, error) {
	if len(itemIDs) == 0 {
		return []model.InventoryItem{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM inventory WHERE shop_id = ? AND id IN (?)`, shopID, itemIDs)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var rows []itemRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	conditions := []string{"shop_id = :shop_id"}
	args := map[string]interface{}{"shop_id": f.ShopID}

	if q := model.NameKey(f.NameQuery); q != "" {
		conditions = append(conditions, `name_key LIKE :name_query ESCAPE '\'`)
		args["name_query"] = "%" + escapeLike(q) + "%"
	}
	if f.LowStock {
		conditions = append(conditions, "quantity < low_stock_threshold")
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	var count int
	countQuery, countArgs, err := r.DB.BindNamed("SELECT count(*) FROM inventory"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + itemColumns + " FROM inventory" + whereClause + " ORDER BY name_key ASC"
	query += pageClause(f.Page, f.PageSize)

	query, queryArgs, err := r.DB.BindNamed(query, args)
	if err != nil {
		return nil, 0, err
	}
	var rows []itemRow
	if err := r.DB.SelectContext(ctx, &rows, query, queryArgs...); err != nil {
		return nil, 0, err
	}
	return toModels(rows), count, nil
}

func pageClause(page, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableMinor(d *decimal.Decimal) (any, error) {
	if d == nil {
		return nil, nil
	}
	return model.ToMinor(*d)
}

func (r *PGRepository) AddOrIncrement(ctx context.Context, in *dto.StockUpsert) (*model.InventoryItem, error) {
	unitPrice, err := nullableMinor(in.UnitPrice)
	if err != nil {
		return nil, err
	}
	costPrice, err := nullableMinor(in.CostPrice)
	if err != nil {
		return nil, err
	}
	var threshold any
	if in.LowStockThreshold != nil {
		threshold = *in.LowStockThreshold
	}
	key := model.NameKey(in.Name)

	var item *model.InventoryItem
	err = database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		upsert := tx.Rebind(`
			INSERT INTO inventory (` + itemColumns + `)
			VALUES (?, ?, ?, ?, ?,
				COALESCE(CAST(? AS BIGINT), 0), COALESCE(CAST(? AS BIGINT), 0), COALESCE(CAST(? AS BIGINT), 0), ?, ?)
			ON CONFLICT (shop_id, name_key) DO UPDATE SET
				quantity = inventory.quantity + excluded.quantity,
				unit_price_minor = COALESCE(CAST(? AS BIGINT), inventory.unit_price_minor),
				cost_price_minor = COALESCE(CAST(? AS BIGINT), inventory.cost_price_minor),
				low_stock_threshold = COALESCE(CAST(? AS BIGINT), inventory.low_stock_threshold),
				updated_at = excluded.updated_at
		`)
		_, err := tx.ExecContext(ctx, upsert,
			in.ID, in.ShopID, strings.TrimSpace(in.Name), key, in.Quantity,
			unitPrice, costPrice, threshold, in.Now, in.Now,
			unitPrice, costPrice, threshold,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert inventory: %w", err)
		}

		item, err = getItem(ctx, tx, `WHERE shop_id = ? AND name_key = ?`, in.ShopID, key)
		if err != nil {
			return err
		}
		if item == nil {
			return apperror.NotFound("item %q", in.Name)
		}

		return insertMovement(ctx, tx, &model.InventoryMovement{
			ID:             in.MovementID,
			ShopID:         in.ShopID,
			ItemID:         item.ID,
			MovementType:   model.MovementRestock,
			QuantityChange: in.Quantity,
			QuantityAfter:  item.Quantity,
			Notes:          in.Notes,
			CreatedBy:      in.CreatedBy,
			CreatedAt:      in.Now,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PGRepository) AdjustStockWithMovement(ctx context.Context, shopID, itemID string, delta int, movement *model.InventoryMovement) (*model.InventoryItem, error) {
	var item *model.InventoryItem
	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		current, err := getItem(ctx, tx, `WHERE id = ? AND shop_id = ?`, itemID, shopID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("item %s", itemID)
		}
		if current.Quantity+delta < 0 {
			return &apperror.StockError{ItemID: itemID, ItemName: current.Name, Requested: -delta, Available: current.Quantity}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE inventory SET quantity = quantity + ?, updated_at = ?
			WHERE id = ? AND shop_id = ? AND quantity + ? >= 0
		`), delta, movement.CreatedAt, itemID, shopID, delta)
		if err != nil {
			return fmt.Errorf("failed to update inventory: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return &apperror.StockError{ItemID: itemID, ItemName: current.Name, Requested: -delta, Race: true}
		}

		item, err = getItem(ctx, tx, `WHERE id = ? AND shop_id = ?`, itemID, shopID)
		if err != nil {
			return err
		}

		movement.ShopID = shopID
		movement.ItemID = itemID
		movement.QuantityChange = delta
		movement.QuantityAfter = item.Quantity
		return insertMovement(ctx, tx, movement)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PGRepository) UpdateItem(ctx context.Context, item *model.InventoryItem) error {
	unitPrice, err := model.ToMinor(item.UnitPrice)
	if err != nil {
		return err
	}
	costPrice, err := model.ToMinor(item.CostPrice)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		UPDATE inventory SET unit_price_minor = ?, cost_price_minor = ?, low_stock_threshold = ?, updated_at = ?
		WHERE id = ? AND shop_id = ?
	`), unitPrice, costPrice, item.LowStockThreshold, item.UpdatedAt, item.ID, item.ShopID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("item %s", item.ID)
	}
	return nil
}

// InsertMovement writes an audit row inside tx.
func InsertMovement(ctx context.Context, tx *sqlx.Tx, m *model.InventoryMovement) error {
	return insertMovement(ctx, tx, m)
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, m *model.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements (
			id, shop_id, item_id, movement_type, quantity_change, quantity_after,
			reference_id, notes, created_by, created_at
		)
		VALUES (
			:id, :shop_id, :item_id, :movement_type, :quantity_change, :quantity_after,
			:reference_id, :notes, :created_by, :created_at
		)
	`
	if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	conditions := []string{"shop_id = :shop_id"}
	args := map[string]interface{}{"shop_id": f.ShopID}

	if f.ItemID != "" {
		conditions = append(conditions, "item_id = :item_id")
		args["item_id"] = f.ItemID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = f.EndDate.UTC()
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	var count int
	countQuery, countArgs, err := r.DB.BindNamed("SELECT count(*) FROM inventory_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, shop_id, item_id, movement_type, quantity_change, quantity_after, reference_id, notes, created_by, created_at
		FROM inventory_movements` + whereClause + " ORDER BY created_at DESC, id ASC" + pageClause(f.Page, f.PageSize)
	query, queryArgs, err := r.DB.BindNamed(query, args)
	if err != nil {
		return nil, 0, err
	}

	items := []model.InventoryMovement{}
	if err := r.DB.SelectContext(ctx, &items, query, queryArgs...); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
