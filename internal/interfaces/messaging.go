package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// Сообщения RabbitMQ

// Event is a domain event published to the events exchange after commit.
type Event struct {
	Type       string                 `json:"type"`
	RequestID  string                 `json:"request_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

const (
	EventOrderLineAdded           = "order_line.added"
	EventOrderLineUpdated         = "order_line.updated"
	EventOrderLineRemoved         = "order_line.removed"
	EventOrderStatusChanged       = "order.status_changed"
	EventMenuAvailabilityChanged  = "menu_item.availability_changed"
	EventTableAvailabilityChanged = "table.availability_changed"
	EventPrintJobEnqueued         = "print_job.enqueued"
	EventPrintJobPrinted          = "print_job.printed"
	EventPrintJobFailed           = "print_job.failed"
	EventPrintJobsCancelled       = "print_jobs.cancelled"
)

// CommandMessage is the envelope received on the command queue. Payload is
// decoded according to Type.
type CommandMessage struct {
	Type    string          `json:"type"`
	ActorID int64           `json:"actor_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

const (
	CommandCreateOrderLine         = "create_order_line"
	CommandUpdateOrderLineQuantity = "update_order_line_quantity"
	CommandDeleteOrderLine         = "delete_order_line"
	CommandSetOrderStatus          = "set_order_status"
	CommandOpenOrder               = "open_order"
	CommandDeleteOrder             = "delete_order"
	CommandEnqueuePrintJob         = "enqueue_print_job"
	CommandCancelPendingPrintJobs  = "cancel_pending_print_jobs"
)

// ReplyMessage answers a command when the caller set ReplyTo.
type ReplyMessage struct {
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  *ReplyError `json:"error,omitempty"`
}

type ReplyError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Delivery is what a command handler sees of an incoming message.
type Delivery struct {
	Body          []byte
	CorrelationID string
	ReplyTo       string
}

// Интерфейсы Messaging (Adapter/RabbitMQ)
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

type ReplyPublisher interface {
	PublishReply(ctx context.Context, replyTo, correlationID string, reply ReplyMessage) error
}

type MessageConsumer interface {
	ConsumeCommands(ctx context.Context, handler CommandHandler) error
	ConsumeEvents(ctx context.Context, handler EventHandler) error
}

type (
	CommandHandler func(ctx context.Context, d Delivery) error
	EventHandler   func(ctx context.Context, body []byte) error
)
