package amqp

import (
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
)

// Reply payloads. Decimals travel as strings.

type OrderLineView struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	MenuItemID int64  `json:"menu_item_id"`
	Quantity   string `json:"quantity"`
}

type OrderView struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	WaiterName string             `json:"waiter_name,omitempty"`
	TableID    *int64             `json:"table_id,omitempty"`
	Status     domain.OrderStatus `json:"status"`
	Subtotal   string             `json:"subtotal"`
	Total      string             `json:"total"`
	CreatedAt  time.Time          `json:"created_at"`
}

type PrintJobView struct {
	ID        int64                 `json:"id"`
	PrinterID int64                 `json:"printer_id"`
	Status    domain.PrintJobStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
}

func lineView(l *domain.OrderLine) OrderLineView {
	return OrderLineView{
		ID:         l.ID,
		OrderID:    l.OrderID,
		MenuItemID: l.MenuItemID,
		Quantity:   l.Quantity.String(),
	}
}

func orderView(o *domain.Order) OrderView {
	return OrderView{
		ID:         o.ID,
		UserID:     o.UserID,
		WaiterName: o.WaiterName,
		TableID:    o.TableID,
		Status:     o.Status,
		Subtotal:   o.Subtotal.String(),
		Total:      o.Total.String(),
		CreatedAt:  o.CreatedAt,
	}
}

func printJobView(j *domain.PrintJob) PrintJobView {
	return PrintJobView{
		ID:        j.ID,
		PrinterID: j.PrinterID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
}
