package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

type NotificationHandler struct {
	logger logger.Logger
	out    io.Writer
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		out:    os.Stdout,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var ev interfaces.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received %s", ev.Type), ev.RequestID, ev.Data)

	fmt.Fprintln(h.out, describe(ev))
	return nil
}

// describe renders one human readable line per event.
func describe(ev interfaces.Event) string {
	d := ev.Data
	switch ev.Type {
	case interfaces.EventOrderStatusChanged:
		if old, ok := d["old_status"]; ok {
			return fmt.Sprintf("Order %v: status changed from '%v' to '%v'", d["order_id"], old, d["new_status"])
		}
		return fmt.Sprintf("Order %v opened", d["order_id"])
	case interfaces.EventOrderLineAdded:
		return fmt.Sprintf("Order %v: line %v added, quantity %v", d["order_id"], d["order_line_id"], d["quantity"])
	case interfaces.EventOrderLineUpdated:
		return fmt.Sprintf("Order %v: line %v quantity %v -> %v", d["order_id"], d["order_line_id"], d["previous_quantity"], d["quantity"])
	case interfaces.EventOrderLineRemoved:
		return fmt.Sprintf("Order %v: line %v removed", d["order_id"], d["order_line_id"])
	case interfaces.EventMenuAvailabilityChanged:
		return fmt.Sprintf("Menu item %v available: %v", d["menu_item_id"], d["available"])
	case interfaces.EventTableAvailabilityChanged:
		return fmt.Sprintf("Table %v available: %v", d["table_id"], d["available"])
	case interfaces.EventPrintJobFailed:
		return fmt.Sprintf("Print job %v failed: %v", d["print_job_id"], d["error"])
	case interfaces.EventPrintJobsCancelled:
		return fmt.Sprintf("%v pending print jobs cancelled", d["count"])
	}
	return fmt.Sprintf("%s %v", ev.Type, d)
}
