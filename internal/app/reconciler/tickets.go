package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/app/printing"
	"github.com/YelzhanWeb/waiter/internal/app/receipt"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

type ticketRenderer func(receipt.Header, []receipt.Item) string

// enqueueTicket sends a kitchen or cancellation slip for one line to the
// menu item's printer. Items without a printer, or whose printer is
// disabled, print nothing.
func (u *unitOfWork) enqueueTicket(ctx context.Context, order *domain.Order, item *domain.MenuItem, quantity decimal.Decimal, render ticketRenderer) error {
	if item.PrinterID == nil {
		return nil
	}

	printer, err := u.repos.Printers().FindByID(ctx, *item.PrinterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.svc.logger.Warn("printer_missing", "Menu item points at a missing printer", u.requestID, map[string]interface{}{
				"menu_item_id": item.ID,
				"printer_id":   *item.PrinterID,
			})
			return nil
		}
		return fmt.Errorf("failed to load printer %d: %w", *item.PrinterID, err)
	}
	if !printer.IsEnabled {
		return nil
	}

	header, err := u.receiptHeader(ctx, order)
	if err != nil {
		return err
	}
	payload := render(header, []receipt.Item{{Name: item.Name, Quantity: quantity}})

	job, err := printing.Enqueue(ctx, u.repos, printer.ID, payload, domain.PayloadText)
	if err != nil {
		return err
	}
	u.emit(printing.EnqueuedEvent(job, u.requestID))
	return nil
}

// enqueueCashierReceipt prints the final bill on the checkout printer.
func (u *unitOfWork) enqueueCashierReceipt(ctx context.Context, order *domain.Order) error {
	printer, err := u.repos.Printers().FindCheckout(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.svc.logger.Warn("checkout_printer_missing", "No enabled checkout printer, receipt not printed", u.requestID, map[string]interface{}{
				"order_id": order.ID,
			})
			return nil
		}
		return fmt.Errorf("failed to find checkout printer: %w", err)
	}

	lines, err := u.repos.Lines().ListByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to list lines of order %d: %w", order.ID, err)
	}
	items := make([]receipt.Item, 0, len(lines))
	for _, line := range lines {
		menuItem, err := u.repos.Menu().FindByID(ctx, line.MenuItemID)
		if err != nil {
			return fmt.Errorf("failed to load menu item %d: %w", line.MenuItemID, err)
		}
		items = append(items, receipt.Item{
			Name:     menuItem.Name,
			Quantity: line.Quantity,
			Total:    domain.LineTotal(line.Quantity, menuItem.Price),
		})
	}

	commission, err := u.commission(ctx, order)
	if err != nil {
		return err
	}
	header, err := u.receiptHeader(ctx, order)
	if err != nil {
		return err
	}
	payload := receipt.Cashier(header, items, receipt.Totals{
		Subtotal:          order.Subtotal,
		CommissionPercent: commission,
		Total:             order.Total,
	})

	job, err := printing.Enqueue(ctx, u.repos, printer.ID, payload, domain.PayloadText)
	if err != nil {
		return err
	}
	u.emit(printing.EnqueuedEvent(job, u.requestID))
	return nil
}

func (u *unitOfWork) receiptHeader(ctx context.Context, order *domain.Order) (receipt.Header, error) {
	h := receipt.Header{
		WaiterName: order.WaiterName,
		OrderID:    order.ID,
		OpenedAt:   order.CreatedAt,
		PrintedAt:  u.svc.now(),
	}
	if order.TableID == nil {
		return h, nil
	}
	table, err := u.repos.Tables().FindByID(ctx, *order.TableID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return h, nil
		}
		return h, fmt.Errorf("failed to load table %d: %w", *order.TableID, err)
	}
	h.TableName = table.Name
	h.TableLocation = table.Location
	return h, nil
}
