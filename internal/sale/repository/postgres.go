package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	invRepo "github.com/fekuna/omnipos-retail-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-retail-service/internal/model"
	"github.com/fekuna/omnipos-retail-service/internal/sale"
	"github.com/fekuna/omnipos-retail-service/pkg/database"
)

type PGLedger struct {
	DB *sqlx.DB
}

func NewPGLedger(db *sqlx.DB) *PGLedger {
	return &PGLedger{DB: db}
}

type saleRow struct {
	ID         string    `db:"id"`
	ShopID     string    `db:"shop_id"`
	RepID      string    `db:"rep_id"`
	TotalMinor int64     `db:"total_minor"`
	CreatedAt  time.Time `db:"created_at"`
}

type lineRow struct {
	SaleID         string `db:"sale_id"`
	LineNo         int    `db:"line_no"`
	ItemID         string `db:"item_id"`
	ItemName       string `db:"item_name"`
	Quantity       int    `db:"quantity"`
	UnitPriceMinor int64  `db:"unit_price_minor"`
}

func (l *PGLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx sale.LedgerTx) error) error {
	return database.WithTx(ctx, l.DB, func(tx *sqlx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) InsertSale(ctx context.Context, s *model.Sale) error {
	total, err := model.ToMinor(s.Total)
	if err != nil {
		return err
	}
	_, err = t.tx.NamedExecContext(ctx, `
		INSERT INTO sales (id, shop_id, rep_id, total_minor, created_at)
		VALUES (:id, :shop_id, :rep_id, :total_minor, :created_at)
	`, saleRow{
		ID:         s.ID,
		ShopID:     s.ShopID,
		RepID:      s.RepID,
		TotalMinor: total,
		CreatedAt:  s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for i, line := range s.Lines {
		price, err := model.ToMinor(line.UnitPrice)
		if err != nil {
			return err
		}
		_, err = t.tx.NamedExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, item_id, item_name, quantity, unit_price_minor)
			VALUES (:sale_id, :line_no, :item_id, :item_name, :quantity, :unit_price_minor)
		`, lineRow{
			SaleID:         s.ID,
			LineNo:         i + 1,
			ItemID:         line.ItemID,
			ItemName:       line.ItemName,
			Quantity:       line.Quantity,
			UnitPriceMinor: price,
		})
		if err != nil {
			return fmt.Errorf("failed to insert sale line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *ledgerTx) DecrementStock(ctx context.Context, d sale.StockDecrement) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE inventory SET quantity = quantity - ?, updated_at = ?
		WHERE id = ? AND shop_id = ? AND quantity >= ?
	`), d.Quantity, d.At, d.ItemID, d.ShopID, d.Quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	var after int
	err = t.tx.GetContext(ctx, &after, t.tx.Rebind(`SELECT quantity FROM inventory WHERE id = ? AND shop_id = ?`), d.ItemID, d.ShopID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("item %s", d.ItemID)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperror.StockError{ItemID: d.ItemID, ItemName: d.ItemName, Requested: d.Quantity, Available: after, Race: true}
	}

	saleID := d.SaleID
	return invRepo.InsertMovement(ctx, t.tx, &model.InventoryMovement{
		ID:             uuid.New().String(),
		ShopID:         d.ShopID,
		ItemID:         d.ItemID,
		MovementType:   model.MovementSale,
		QuantityChange: -d.Quantity,
		QuantityAfter:  after,
		ReferenceID:    &saleID,
		CreatedBy:      d.UserID,
		CreatedAt:      d.At,
	})
}

func (l *PGLedger) ListForRep(ctx context.Context, shopID, repID string, from, to time.Time) ([]model.Sale, error) {
	var rows []saleRow
	err := l.DB.SelectContext(ctx, &rows, l.DB.Rebind(`
		SELECT id, shop_id, rep_id, total_minor, created_at FROM sales
		WHERE shop_id = ? AND rep_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC
	`), shopID, repID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return l.withLines(ctx, rows)
}

func (l *PGLedger) FindByID(ctx context.Context, shopID, saleID string) (*model.Sale, error) {
	var rows []saleRow
	err := l.DB.SelectContext(ctx, &rows, l.DB.Rebind(`
		SELECT id, shop_id, rep_id, total_minor, created_at FROM sales WHERE id = ? AND shop_id = ?
	`), saleID, shopID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sales, err := l.withLines(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (l *PGLedger) withLines(ctx context.Context, rows []saleRow) ([]model.Sale, error) {
	sales := make([]model.Sale, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}

	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		index[r.ID] = i
		sales[i] = model.Sale{
			ID:        r.ID,
			ShopID:    r.ShopID,
			RepID:     r.RepID,
			Total:     model.FromMinor(r.TotalMinor),
			CreatedAt: r.CreatedAt,
			Lines:     []model.SaleLine{},
		}
	}

	query, args, err := sqlx.In(`
		SELECT sale_id, line_no, item_id, item_name, quantity, unit_price_minor
		FROM sale_lines WHERE sale_id IN (?) ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return nil, err
	}
	var lines []lineRow
	if err := l.DB.SelectContext(ctx, &lines, l.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, ln := range lines {
		i := index[ln.SaleID]
		sales[i].Lines = append(sales[i].Lines, model.SaleLine{
			ItemID:    ln.ItemID,
			ItemName:  ln.ItemName,
			Quantity:  ln.Quantity,
			UnitPrice: model.FromMinor(ln.UnitPriceMinor),
		})
	}
	return sales, nil
}
