package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

type stockRepository struct {
	q Querier
}

func (r *stockRepository) FindByID(ctx context.Context, id int64) (*domain.StockUnit, error) {
	query := `
		SELECT id, name, quantity, unit_of_measure
		FROM stock_units
		WHERE id = $1
	`

	var unit domain.StockUnit
	err := r.q.QueryRow(ctx, query, id).Scan(&unit.ID, &unit.Name, &unit.Quantity, &unit.UnitOfMeasure)
	if err != nil {
		return nil, scanErr(err, "stock unit", id)
	}
	return &unit, nil
}

// SubtractIfAvailable is a single conditional UPDATE. Postgres re-checks the
// WHERE clause after taking the row lock, so concurrent reducers can never
// drive the quantity below zero.
func (r *stockRepository) SubtractIfAvailable(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE stock_units
		SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2
	`
	tag, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return false, fmt.Errorf("failed to reduce stock unit %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *stockRepository) Add(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	query := `UPDATE stock_units SET quantity = quantity + $2 WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return false, fmt.Errorf("failed to increase stock unit %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

type usageRepository struct {
	q Querier
}

func (r *usageRepository) Find(ctx context.Context, stockUnitID, orderLineID int64) (*domain.UsageRecord, error) {
	query := `
		SELECT stock_unit_id, order_line_id, quantity, created_at
		FROM usage_records
		WHERE stock_unit_id = $1 AND order_line_id = $2
	`

	var rec domain.UsageRecord
	err := r.q.QueryRow(ctx, query, stockUnitID, orderLineID).Scan(
		&rec.StockUnitID, &rec.OrderLineID, &rec.Quantity, &rec.CreatedAt,
	)
	if err != nil {
		return nil, scanErr(err, fmt.Sprintf("usage of stock unit %d by line", stockUnitID), orderLineID)
	}
	return &rec, nil
}

func (r *usageRepository) Save(ctx context.Context, rec *domain.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO usage_records (stock_unit_id, order_line_id, quantity, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stock_unit_id, order_line_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`
	_, err := r.q.Exec(ctx, query, rec.StockUnitID, rec.OrderLineID, rec.Quantity, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	return nil
}

func (r *usageRepository) Delete(ctx context.Context, stockUnitID, orderLineID int64) error {
	query := `DELETE FROM usage_records WHERE stock_unit_id = $1 AND order_line_id = $2`
	_, err := r.q.Exec(ctx, query, stockUnitID, orderLineID)
	if err != nil {
		return fmt.Errorf("failed to delete usage record: %w", err)
	}
	return nil
}

func (r *usageRepository) ListByLine(ctx context.Context, orderLineID int64) ([]domain.UsageRecord, error) {
	query := `
		SELECT stock_unit_id, order_line_id, quantity, created_at
		FROM usage_records
		WHERE order_line_id = $1
		ORDER BY stock_unit_id
	`

	rows, err := r.q.Query(ctx, query, orderLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		if err := rows.Scan(&rec.StockUnitID, &rec.OrderLineID, &rec.Quantity, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type recipeRepository struct {
	q Querier
}

func (r *recipeRepository) RequirementsFor(ctx context.Context, menuItemID int64) ([]domain.Requirement, error) {
	query := `
		SELECT menu_item_id, stock_unit_id, quantity
		FROM recipe_requirements
		WHERE menu_item_id = $1
		ORDER BY stock_unit_id
	`

	rows, err := r.q.Query(ctx, query, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe of menu item %d: %w", menuItemID, err)
	}
	defer rows.Close()

	var reqs []domain.Requirement
	for rows.Next() {
		var req domain.Requirement
		if err := rows.Scan(&req.MenuItemID, &req.StockUnitID, &req.QtyPerUnit); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *recipeRepository) MenuItemsUsing(ctx context.Context, stockUnitID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT menu_item_id
		FROM recipe_requirements
		WHERE stock_unit_id = $1
		ORDER BY menu_item_id
	`

	rows, err := r.q.Query(ctx, query, stockUnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items using stock unit %d: %w", stockUnitID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan menu item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
