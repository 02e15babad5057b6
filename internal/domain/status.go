package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsActive reports whether an order in this status still holds its table
// and may have its lines changed.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ActiveOrderStatuses lists the non-terminal statuses.
var ActiveOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

type PrintJobStatus string

const (
	PrintJobPending   PrintJobStatus = "pending"
	PrintJobPrinting  PrintJobStatus = "printing"
	PrintJobPrinted   PrintJobStatus = "printed"
	PrintJobFailed    PrintJobStatus = "failed"
	PrintJobCancelled PrintJobStatus = "cancelled"
)

// IsTerminal reports whether the dispatcher will never touch the job again.
func (s PrintJobStatus) IsTerminal() bool {
	return s == PrintJobPrinted || s == PrintJobCancelled
}

type PayloadEncoding string

const (
	PayloadText   PayloadEncoding = "text"
	PayloadBase64 PayloadEncoding = "base64"
)

// StatusLog represents a log entry for order status changes
type StatusLog struct {
	ID        int64
	OrderID   int64
	Status    OrderStatus
	ChangedBy string
	ChangedAt time.Time
	Notes     *string
}
