package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/app/receipt"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"go.opentelemetry.io/otel/attribute"
)

// CreateOrderLine adds a menu item to an active order and consumes its
// ingredients. If any ingredient is short the line is not created and no
// stock is taken.
func (s *Service) CreateOrderLine(ctx context.Context, cmd interfaces.CreateOrderLineCommand) (*domain.OrderLine, error) {
	if err := domain.ValidateLineQuantity(cmd.Quantity); err != nil {
		return nil, err
	}

	var line *domain.OrderLine
	err := s.run(ctx, "order_line.create", []attribute.KeyValue{
		attribute.Int64("order.id", cmd.OrderID),
		attribute.Int64("menu_item.id", cmd.MenuItemID),
		attribute.String("quantity", cmd.Quantity.String()),
	}, func(ctx context.Context, u *unitOfWork) error {
		order, err := u.activeOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}

		item, err := u.repos.Menu().FindByID(ctx, cmd.MenuItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("menu_item_id", "menu item %d does not exist", cmd.MenuItemID)
			}
			return fmt.Errorf("failed to load menu item %d: %w", cmd.MenuItemID, err)
		}

		line, err = domain.NewOrderLine(order.ID, item.ID, cmd.Quantity)
		if err != nil {
			return err
		}
		short, err := u.svc.propagator.FindShortage(ctx, u.repos, item.ID, line.Quantity)
		if err != nil {
			return err
		}
		if short != nil {
			if short.Unit == nil {
				return fmt.Errorf("menu item %q: stock unit %d: %w", item.Name, short.Requirement.StockUnitID, domain.ErrStockUnitNotFound)
			}
			return &domain.InsufficientStockError{
				UnitID:    short.Unit.ID,
				UnitName:  short.Unit.Name,
				Available: short.Unit.Quantity,
				Required:  short.Needed,
			}
		}
		if err := u.repos.Lines().Create(ctx, line); err != nil {
			return fmt.Errorf("failed to create order line: %w", err)
		}

		if _, err := u.adjustUsage(ctx, line, line.Quantity); err != nil {
			return err
		}
		if err := u.recomputeTotals(ctx, order); err != nil {
			return err
		}
		if err := u.refreshTable(ctx, order.TableID); err != nil {
			return err
		}
		if err := u.enqueueTicket(ctx, order, item, line.Quantity, receipt.KitchenTicket); err != nil {
			return err
		}

		u.emit(lineEvent(interfaces.EventOrderLineAdded, u.requestID, line))
		u.svc.logger.Info("order_line_created", "Order line created", u.requestID, map[string]interface{}{
			"order_id":      order.ID,
			"order_line_id": line.ID,
			"menu_item_id":  item.ID,
			"quantity":      line.Quantity.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateOrderLineQuantity changes a line's quantity and moves only the
// difference between the new requirement and what was already consumed.
func (s *Service) UpdateOrderLineQuantity(ctx context.Context, cmd interfaces.UpdateOrderLineQuantityCommand) (*domain.OrderLine, error) {
	if err := domain.ValidateLineQuantity(cmd.Quantity); err != nil {
		return nil, err
	}

	var line *domain.OrderLine
	err := s.run(ctx, "order_line.update", []attribute.KeyValue{
		attribute.Int64("order_line.id", cmd.LineID),
		attribute.String("quantity", cmd.Quantity.String()),
	}, func(ctx context.Context, u *unitOfWork) error {
		var err error
		line, err = u.repos.Lines().FindByID(ctx, cmd.LineID)
		if err != nil {
			return err
		}
		order, err := u.activeOrder(ctx, line.OrderID)
		if err != nil {
			return err
		}
		// Re-read under the order lock.
		if line, err = u.repos.Lines().FindByID(ctx, line.ID); err != nil {
			return err
		}

		changed, err := u.adjustUsage(ctx, line, cmd.Quantity)
		if err != nil {
			return err
		}
		if line.Quantity.Equal(cmd.Quantity) {
			if changed {
				u.svc.logger.Warn("usage_repaired", "Usage records corrected for unchanged line", u.requestID, map[string]interface{}{
					"order_line_id": line.ID,
				})
			}
			return nil
		}

		previous := line.Quantity
		line.Quantity = cmd.Quantity
		line.UpdatedAt = u.svc.now().UTC()
		if err := u.repos.Lines().UpdateQuantity(ctx, line); err != nil {
			return fmt.Errorf("failed to update order line %d: %w", line.ID, err)
		}
		if err := u.recomputeTotals(ctx, order); err != nil {
			return err
		}

		ev := lineEvent(interfaces.EventOrderLineUpdated, u.requestID, line)
		ev.Data["previous_quantity"] = previous.String()
		u.emit(ev)
		u.svc.logger.Info("order_line_updated", "Order line quantity updated", u.requestID, map[string]interface{}{
			"order_line_id":     line.ID,
			"previous_quantity": previous.String(),
			"quantity":          line.Quantity.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteOrderLine restores everything the line consumed and then removes
// it. Restoring first means a failed restore leaves the line in place.
func (s *Service) DeleteOrderLine(ctx context.Context, cmd interfaces.DeleteOrderLineCommand) error {
	return s.run(ctx, "order_line.delete", []attribute.KeyValue{
		attribute.Int64("order_line.id", cmd.LineID),
	}, func(ctx context.Context, u *unitOfWork) error {
		line, err := u.repos.Lines().FindByID(ctx, cmd.LineID)
		if err != nil {
			return err
		}
		order, err := u.repos.Orders().FindByID(ctx, line.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order %d: %w", line.OrderID, err)
		}
		if line, err = u.repos.Lines().FindByID(ctx, line.ID); err != nil {
			return err
		}
		if err := u.deleteLine(ctx, order, line); err != nil {
			return err
		}
		return u.recomputeTotals(ctx, order)
	})
}

func (u *unitOfWork) deleteLine(ctx context.Context, order *domain.Order, line *domain.OrderLine) error {
	if err := u.restoreUsage(ctx, line.ID); err != nil {
		return err
	}
	if err := u.repos.Lines().Delete(ctx, line.ID); err != nil {
		return fmt.Errorf("failed to delete order line %d: %w", line.ID, err)
	}

	if order.Status.IsActive() {
		item, err := u.repos.Menu().FindByID(ctx, line.MenuItemID)
		switch {
		case err == nil:
			if err := u.enqueueTicket(ctx, order, item, line.Quantity, receipt.CancellationTicket); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("failed to load menu item %d: %w", line.MenuItemID, err)
		}
	}

	u.emit(lineEvent(interfaces.EventOrderLineRemoved, u.requestID, line))
	u.svc.logger.Info("order_line_deleted", "Order line deleted", u.requestID, map[string]interface{}{
		"order_id":      order.ID,
		"order_line_id": line.ID,
	})
	return nil
}

// activeOrder loads an order that still accepts line changes.
func (u *unitOfWork) activeOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsActive() {
		return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, domain.ErrOrderNotActive)
	}
	return order, nil
}

func lineEvent(eventType, requestID string, line *domain.OrderLine) interfaces.Event {
	return events.New(eventType, requestID, map[string]interface{}{
		"order_line_id": line.ID,
		"order_id":      line.OrderID,
		"menu_item_id":  line.MenuItemID,
		"quantity":      line.Quantity.String(),
	})
}
