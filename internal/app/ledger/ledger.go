// Package ledger owns stock quantities. Every change to on-hand stock goes
// through Reduce or Increase.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	stock interfaces.StockRepository
}

// New binds a ledger to a stock repository, usually one scoped to the
// caller's transaction.
func New(stock interfaces.StockRepository) *Ledger {
	return &Ledger{stock: stock}
}

// Reduce subtracts amount from a unit. The subtraction is a single
// conditional write, so concurrent reducers can never drive a unit below
// zero. A non-positive amount is a no-op.
func (l *Ledger) Reduce(ctx context.Context, unitID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	ok, err := l.stock.SubtractIfAvailable(ctx, unitID, amount)
	if err != nil {
		return fmt.Errorf("failed to reduce stock unit %d: %w", unitID, err)
	}
	if ok {
		return nil
	}

	unit, err := l.stock.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("stock unit %d: %w", unitID, domain.ErrStockUnitNotFound)
		}
		return fmt.Errorf("failed to read stock unit %d: %w", unitID, err)
	}
	return &domain.InsufficientStockError{
		UnitID:    unit.ID,
		UnitName:  unit.Name,
		Available: unit.Quantity,
		Required:  amount,
	}
}

// Increase adds amount to a unit. A non-positive amount is a no-op.
func (l *Ledger) Increase(ctx context.Context, unitID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	found, err := l.stock.Add(ctx, unitID, amount)
	if err != nil {
		return fmt.Errorf("failed to increase stock unit %d: %w", unitID, err)
	}
	if !found {
		return fmt.Errorf("stock unit %d: %w", unitID, domain.ErrStockUnitNotFound)
	}
	return nil
}

// OnHand returns the current quantity of a unit.
func (l *Ledger) OnHand(ctx context.Context, unitID int64) (decimal.Decimal, error) {
	unit, err := l.stock.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("stock unit %d: %w", unitID, domain.ErrStockUnitNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to read stock unit %d: %w", unitID, err)
	}
	return unit.Quantity, nil
}
