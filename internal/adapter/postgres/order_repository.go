package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
)

type orderRepository struct {
	q Querier
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	// Waiters are owned by the admin side; an unseen id is registered with
	// the name the client sent, and an empty name keeps the stored one.
	userQuery := `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name)
		RETURNING name
	`
	if err := r.q.QueryRow(ctx, userQuery, order.UserID, order.WaiterName).Scan(&order.WaiterName); err != nil {
		return fmt.Errorf("failed to register waiter %d: %w", order.UserID, err)
	}

	query := `
		INSERT INTO orders (user_id, table_id, status, subtotal, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		order.UserID, order.TableID, order.Status, order.Subtotal, order.Total, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// FindByID locks the order row until the surrounding transaction ends, so
// line operations on one order run one at a time.
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, u.name, o.table_id, o.status, o.subtotal, o.total, o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`

	var order domain.Order
	err := r.q.QueryRow(ctx, query, id).Scan(
		&order.ID, &order.UserID, &order.WaiterName, &order.TableID, &order.Status,
		&order.Subtotal, &order.Total, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, scanErr(err, "order", id)
	}
	return &order, nil
}

func (r *orderRepository) UpdateTotals(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET subtotal = $1, total = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.q.Exec(ctx, query, order.Subtotal, order.Total, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return affected(tag, "order", order.ID)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	tag, err := r.q.Exec(ctx, query, order.Status, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return affected(tag, "order", order.ID)
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return affected(tag, "order", id)
}

func (r *orderRepository) CountActiveByTable(ctx context.Context, tableID int64) (int, error) {
	statuses := make([]string, 0, len(domain.ActiveOrderStatuses))
	for _, s := range domain.ActiveOrderStatuses {
		statuses = append(statuses, string(s))
	}

	query := `SELECT COUNT(*) FROM orders WHERE table_id = $1 AND status = ANY($2)`
	var count int
	if err := r.q.QueryRow(ctx, query, tableID, statuses).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active orders of table %d: %w", tableID, err)
	}
	return count, nil
}

func (r *orderRepository) LogStatus(ctx context.Context, orderID int64, status domain.OrderStatus, changedBy string) error {
	query := `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.q.Exec(ctx, query, orderID, status, changedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}
	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	query := `
		SELECT id, order_id, status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var logs []*domain.StatusLog
	for rows.Next() {
		var log domain.StatusLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.Status, &log.ChangedBy, &log.ChangedAt, &log.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

type orderLineRepository struct {
	q Querier
}

func (r *orderLineRepository) Create(ctx context.Context, line *domain.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, menu_item_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		line.OrderID, line.MenuItemID, line.Quantity, line.CreatedAt, line.UpdatedAt,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order line: %w", err)
	}
	return nil
}

func (r *orderLineRepository) FindByID(ctx context.Context, id int64) (*domain.OrderLine, error) {
	query := `
		SELECT id, order_id, menu_item_id, quantity, created_at, updated_at
		FROM order_lines
		WHERE id = $1
	`

	var line domain.OrderLine
	err := r.q.QueryRow(ctx, query, id).Scan(
		&line.ID, &line.OrderID, &line.MenuItemID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt,
	)
	if err != nil {
		return nil, scanErr(err, "order line", id)
	}
	return &line, nil
}

func (r *orderLineRepository) UpdateQuantity(ctx context.Context, line *domain.OrderLine) error {
	query := `UPDATE order_lines SET quantity = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.q.Exec(ctx, query, line.Quantity, line.UpdatedAt, line.ID)
	if err != nil {
		return fmt.Errorf("failed to update order line: %w", err)
	}
	return affected(tag, "order line", line.ID)
}

func (r *orderLineRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM order_lines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order line: %w", err)
	}
	return affected(tag, "order line", id)
}

func (r *orderLineRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	query := `
		SELECT id, order_id, menu_item_id, quantity, created_at, updated_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.MenuItemID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
