package postgres

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/domain"
)

type menuRepository struct {
	q Querier
}

func (r *menuRepository) FindByID(ctx context.Context, id int64) (*domain.MenuItem, error) {
	query := `
		SELECT id, name, price, category, printer_id, is_available
		FROM menu_items
		WHERE id = $1
	`

	var item domain.MenuItem
	err := r.q.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Price, &item.Category, &item.PrinterID, &item.IsAvailable,
	)
	if err != nil {
		return nil, scanErr(err, "menu item", id)
	}
	return &item, nil
}

func (r *menuRepository) SetAvailable(ctx context.Context, id int64, available bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE menu_items SET is_available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("failed to update availability of menu item %d: %w", id, err)
	}
	return affected(tag, "menu item", id)
}

type tableRepository struct {
	q Querier
}

// FindByID locks the table row until the surrounding transaction ends.
// Callers already holding an order lock take it second, never first.
func (r *tableRepository) FindByID(ctx context.Context, id int64) (*domain.Table, error) {
	query := `
		SELECT id, name, location, capacity, commission, is_available
		FROM tables
		WHERE id = $1
		FOR UPDATE
	`

	var t domain.Table
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Location, &t.Capacity, &t.Commission, &t.IsAvailable,
	)
	if err != nil {
		return nil, scanErr(err, "table", id)
	}
	return &t, nil
}

func (r *tableRepository) SetAvailable(ctx context.Context, id int64, available bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE tables SET is_available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("failed to update availability of table %d: %w", id, err)
	}
	return affected(tag, "table", id)
}

type printerRepository struct {
	q Querier
}

const printerColumns = `id, name, address, port, is_checkout, is_enabled`

func (r *printerRepository) FindByID(ctx context.Context, id int64) (*domain.Printer, error) {
	query := `SELECT ` + printerColumns + ` FROM printers WHERE id = $1`

	p, err := scanPrinter(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, scanErr(err, "printer", id)
	}
	return p, nil
}

func (r *printerRepository) FindCheckout(ctx context.Context) (*domain.Printer, error) {
	query := `
		SELECT ` + printerColumns + `
		FROM printers
		WHERE is_checkout AND is_enabled
		ORDER BY id
		LIMIT 1
	`

	p, err := scanPrinter(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, scanErr(err, "checkout printer", 0)
	}
	return p, nil
}

func scanPrinter(row Row) (*domain.Printer, error) {
	var p domain.Printer
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Port, &p.IsCheckout, &p.IsEnabled); err != nil {
		return nil, err
	}
	return &p, nil
}
