package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

// adjustUsage brings a line's usage records and the stock ledger in line
// with quantity. Each requirement is re-derived from the new quantity and
// diffed against what the line has actually consumed so far, so a record
// left behind by an earlier partial failure is corrected on the next pass.
// Ledger first, record second.
func (u *unitOfWork) adjustUsage(ctx context.Context, line *domain.OrderLine, quantity decimal.Decimal) (changed bool, err error) {
	reqs, err := u.resolver.RequirementsFor(ctx, line.MenuItemID)
	if err != nil {
		return false, err
	}

	for _, req := range reqs {
		needed := req.Needed(quantity)

		consumed := decimal.Zero
		rec, err := u.repos.Usage().Find(ctx, req.StockUnitID, line.ID)
		switch {
		case err == nil:
			consumed = rec.Quantity
		case errors.Is(err, domain.ErrNotFound):
			rec = nil
		default:
			return false, fmt.Errorf("failed to read usage of stock unit %d by line %d: %w", req.StockUnitID, line.ID, err)
		}

		delta := needed.Sub(consumed)
		switch delta.Sign() {
		case 1:
			err = u.ledger.Reduce(ctx, req.StockUnitID, delta)
		case -1:
			err = u.ledger.Increase(ctx, req.StockUnitID, delta.Neg())
		}
		if err != nil {
			if err := u.tolerateMissing(err, req.StockUnitID, line.ID); err != nil {
				return false, err
			}
			continue
		}
		if !delta.IsZero() {
			u.touch(req.StockUnitID)
			changed = true
		}

		if !needed.IsPositive() {
			if rec != nil {
				if err := u.repos.Usage().Delete(ctx, req.StockUnitID, line.ID); err != nil {
					return false, fmt.Errorf("failed to delete usage record: %w", err)
				}
				changed = true
			}
			continue
		}
		if rec == nil || !rec.Quantity.Equal(needed) {
			if err := u.repos.Usage().Save(ctx, &domain.UsageRecord{
				StockUnitID: req.StockUnitID,
				OrderLineID: line.ID,
				Quantity:    needed,
			}); err != nil {
				return false, fmt.Errorf("failed to save usage record: %w", err)
			}
			changed = true
		}

		u.svc.logger.Debug("stock_adjusted", "Stock adjusted for order line", u.requestID, map[string]interface{}{
			"order_line_id": line.ID,
			"stock_unit_id": req.StockUnitID,
			"consumed":      needed.String(),
			"delta":         delta.String(),
		})
	}
	return changed, nil
}

// restoreUsage returns everything a line consumed to stock and drops its
// usage records.
func (u *unitOfWork) restoreUsage(ctx context.Context, lineID int64) error {
	records, err := u.repos.Usage().ListByLine(ctx, lineID)
	if err != nil {
		return fmt.Errorf("failed to list usage of line %d: %w", lineID, err)
	}

	for _, rec := range records {
		if err := u.ledger.Increase(ctx, rec.StockUnitID, rec.Quantity); err != nil {
			if err := u.tolerateMissing(err, rec.StockUnitID, lineID); err != nil {
				return err
			}
		} else {
			u.touch(rec.StockUnitID)
		}
		if err := u.repos.Usage().Delete(ctx, rec.StockUnitID, lineID); err != nil {
			return fmt.Errorf("failed to delete usage record: %w", err)
		}
	}

	if len(records) > 0 {
		u.svc.logger.Debug("stock_restored", "Stock restored for order line", u.requestID, map[string]interface{}{
			"order_line_id": lineID,
			"records":       len(records),
		})
	}
	return nil
}

// tolerateMissing applies the missing stock policy to a ledger error. Any
// other error is returned unchanged.
func (u *unitOfWork) tolerateMissing(err error, unitID, lineID int64) error {
	if !errors.Is(err, domain.ErrStockUnitNotFound) || u.svc.policy != config.MissingStockSkip {
		return err
	}
	u.svc.logger.Warn("stock_unit_missing", "Recipe references a missing stock unit, skipping it", u.requestID, map[string]interface{}{
		"stock_unit_id": unitID,
		"order_line_id": lineID,
	})
	return nil
}

// recomputeTotals derives subtotal and total from the order's lines at the
// current menu prices and writes them only when they changed.
func (u *unitOfWork) recomputeTotals(ctx context.Context, order *domain.Order) error {
	lines, err := u.repos.Lines().ListByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to list lines of order %d: %w", order.ID, err)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		item, err := u.repos.Menu().FindByID(ctx, line.MenuItemID)
		if err != nil {
			return fmt.Errorf("failed to price line %d: %w", line.ID, err)
		}
		subtotal = subtotal.Add(domain.LineTotal(line.Quantity, item.Price))
	}

	commission, err := u.commission(ctx, order)
	if err != nil {
		return err
	}

	if !order.SetTotals(subtotal, domain.ApplyCommission(subtotal, commission)) {
		return nil
	}
	if err := u.repos.Orders().UpdateTotals(ctx, order); err != nil {
		return fmt.Errorf("failed to update totals of order %d: %w", order.ID, err)
	}
	return nil
}

func (u *unitOfWork) commission(ctx context.Context, order *domain.Order) (decimal.Decimal, error) {
	if order.TableID == nil {
		return decimal.Zero, nil
	}
	table, err := u.repos.Tables().FindByID(ctx, *order.TableID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to load table %d: %w", *order.TableID, err)
	}
	return table.Commission, nil
}
