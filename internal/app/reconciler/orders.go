package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/app/events"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"go.opentelemetry.io/otel/attribute"
)

// OpenOrder starts a pending order for a waiter, optionally at a table.
func (s *Service) OpenOrder(ctx context.Context, cmd interfaces.OpenOrderCommand) (*domain.Order, error) {
	order, err := domain.NewOrder(cmd.UserID, cmd.TableID)
	if err != nil {
		return nil, err
	}
	order.WaiterName = cmd.WaiterName
	order.CreatedAt = s.now().UTC()
	order.UpdatedAt = order.CreatedAt

	attrs := []attribute.KeyValue{attribute.Int64("user.id", cmd.UserID)}
	if cmd.TableID != nil {
		attrs = append(attrs, attribute.Int64("table.id", *cmd.TableID))
	}

	err = s.run(ctx, "order.open", attrs, func(ctx context.Context, u *unitOfWork) error {
		if order.TableID != nil {
			if _, err := u.repos.Tables().FindByID(ctx, *order.TableID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewValidationError("table_id", "table %d does not exist", *order.TableID)
				}
				return fmt.Errorf("failed to load table %d: %w", *order.TableID, err)
			}
		}

		if err := u.repos.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := u.repos.Orders().LogStatus(ctx, order.ID, order.Status, actor(cmd.WaiterName)); err != nil {
			return fmt.Errorf("failed to log order status: %w", err)
		}
		if err := u.refreshTable(ctx, order.TableID); err != nil {
			return err
		}

		u.emit(statusEvent(u.requestID, order, ""))
		u.svc.logger.Info("order_opened", "Order opened", u.requestID, map[string]interface{}{
			"order_id": order.ID,
			"user_id":  order.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetOrderStatus moves an order through its lifecycle. Cancelling returns
// all consumed stock; completing prints the bill on the checkout printer.
// Setting the current status again changes nothing.
func (s *Service) SetOrderStatus(ctx context.Context, cmd interfaces.SetOrderStatusCommand) (*domain.Order, error) {
	if !cmd.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status %q", cmd.Status)
	}

	var order *domain.Order
	err := s.run(ctx, "order.set_status", []attribute.KeyValue{
		attribute.Int64("order.id", cmd.OrderID),
		attribute.String("order.status", string(cmd.Status)),
	}, func(ctx context.Context, u *unitOfWork) error {
		var err error
		order, err = u.repos.Orders().FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if order.Status == cmd.Status {
			return nil
		}

		previous := order.Status
		if err := order.TransitionTo(cmd.Status); err != nil {
			return fmt.Errorf("order %d %s -> %s: %w", order.ID, previous, cmd.Status, err)
		}
		if err := u.repos.Orders().UpdateStatus(ctx, order); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if err := u.repos.Orders().LogStatus(ctx, order.ID, order.Status, actor(cmd.ChangedBy)); err != nil {
			return fmt.Errorf("failed to log order status: %w", err)
		}

		switch order.Status {
		case domain.OrderStatusCancelled:
			lines, err := u.repos.Lines().ListByOrder(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("failed to list lines of order %d: %w", order.ID, err)
			}
			for _, line := range lines {
				if err := u.restoreUsage(ctx, line.ID); err != nil {
					return err
				}
			}
		case domain.OrderStatusCompleted:
			if err := u.recomputeTotals(ctx, order); err != nil {
				return err
			}
			if err := u.enqueueCashierReceipt(ctx, order); err != nil {
				return err
			}
		}

		if err := u.refreshTable(ctx, order.TableID); err != nil {
			return err
		}

		u.emit(statusEvent(u.requestID, order, previous))
		u.svc.logger.Info("order_status_changed", fmt.Sprintf("Order %d is now %s", order.ID, order.Status), u.requestID, map[string]interface{}{
			"order_id":   order.ID,
			"old_status": previous,
			"new_status": order.Status,
			"changed_by": actor(cmd.ChangedBy),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteOrder removes an order and all its lines, restoring stock for each
// line first.
func (s *Service) DeleteOrder(ctx context.Context, cmd interfaces.DeleteOrderCommand) error {
	return s.run(ctx, "order.delete", []attribute.KeyValue{
		attribute.Int64("order.id", cmd.OrderID),
	}, func(ctx context.Context, u *unitOfWork) error {
		order, err := u.repos.Orders().FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}

		lines, err := u.repos.Lines().ListByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to list lines of order %d: %w", order.ID, err)
		}
		for i := range lines {
			if err := u.deleteLine(ctx, order, &lines[i]); err != nil {
				return err
			}
		}

		if err := u.repos.Orders().Delete(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete order %d: %w", order.ID, err)
		}
		if err := u.refreshTable(ctx, order.TableID); err != nil {
			return err
		}

		u.svc.logger.Info("order_deleted", "Order deleted", u.requestID, map[string]interface{}{
			"order_id": order.ID,
			"lines":    len(lines),
		})
		return nil
	})
}

// OrderHistory returns the status audit trail of an order, oldest first.
func (s *Service) OrderHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error) {
	if _, err := s.store.Orders().FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	history, err := s.store.Orders().GetStatusHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history of order %d: %w", orderID, err)
	}
	return history, nil
}

func statusEvent(requestID string, order *domain.Order, previous domain.OrderStatus) interfaces.Event {
	data := map[string]interface{}{
		"order_id":   order.ID,
		"new_status": string(order.Status),
		"subtotal":   order.Subtotal.String(),
		"total":      order.Total.String(),
	}
	if previous != "" {
		data["old_status"] = string(previous)
	}
	if order.TableID != nil {
		data["table_id"] = *order.TableID
	}
	return events.New(interfaces.EventOrderStatusChanged, requestID, data)
}

func actor(name string) string {
	if name == "" {
		return "system"
	}
	return name
}
