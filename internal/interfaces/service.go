package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/shopspring/decimal"
)

// Команды для сервисов
type CreateOrderLineCommand struct {
	OrderID    int64           `json:"order_id"`
	MenuItemID int64           `json:"menu_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type UpdateOrderLineQuantityCommand struct {
	LineID   int64           `json:"line_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type DeleteOrderLineCommand struct {
	LineID int64 `json:"line_id"`
}

type SetOrderStatusCommand struct {
	OrderID   int64              `json:"order_id"`
	Status    domain.OrderStatus `json:"status"`
	ChangedBy string             `json:"changed_by"`
}

type OpenOrderCommand struct {
	UserID     int64  `json:"user_id"`
	WaiterName string `json:"waiter_name"`
	TableID    *int64 `json:"table_id"`
}

type DeleteOrderCommand struct {
	OrderID int64 `json:"order_id"`
}

type EnqueuePrintJobCommand struct {
	PrinterID int64                  `json:"printer_id"`
	Payload   string                 `json:"payload"`
	Encoding  domain.PayloadEncoding `json:"encoding"`
}

// Интерфейсы Сервисов (Business Logic)
type OrderService interface {
	CreateOrderLine(ctx context.Context, cmd CreateOrderLineCommand) (*domain.OrderLine, error)
	UpdateOrderLineQuantity(ctx context.Context, cmd UpdateOrderLineQuantityCommand) (*domain.OrderLine, error)
	DeleteOrderLine(ctx context.Context, cmd DeleteOrderLineCommand) error
	SetOrderStatus(ctx context.Context, cmd SetOrderStatusCommand) (*domain.Order, error)
	OpenOrder(ctx context.Context, cmd OpenOrderCommand) (*domain.Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
}

type PrintQueue interface {
	EnqueuePrintJob(ctx context.Context, cmd EnqueuePrintJobCommand) (*domain.PrintJob, error)
	CancelPendingPrintJobs(ctx context.Context) (int, error)
}

type PrintDispatcher interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrinterDriver delivers raw bytes to one physical printer.
type PrinterDriver interface {
	Print(ctx context.Context, printer *domain.Printer, payload []byte) error
}

// TrackingService is the read side used by the HTTP status endpoints.
type TrackingService interface {
	GetOrderStatus(ctx context.Context, orderID int64) (*TrackingOrderResponse, error)
	GetOrderHistory(ctx context.Context, orderID int64) ([]*domain.StatusLog, error)
	GetPrintQueue(ctx context.Context) ([]*TrackingPrintJobResponse, error)
}

type TrackingOrderResponse struct {
	OrderID       int64
	CurrentStatus domain.OrderStatus
	TableID       *int64
	Lines         int
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	UpdatedAt     time.Time
}

type TrackingPrintJobResponse struct {
	JobID        int64
	PrinterID    int64
	PrinterName  string
	Status       domain.PrintJobStatus
	LastError    string
	WaitingSince time.Time
}
