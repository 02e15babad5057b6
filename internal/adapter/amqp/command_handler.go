package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

const (
	CodeBadRequest              = "bad_request"
	CodeValidation              = "validation_failed"
	CodeInsufficientStock       = "insufficient_stock"
	CodeNotFound                = "not_found"
	CodeStockUnitNotFound       = "stock_unit_not_found"
	CodeInvalidStatusTransition = "invalid_status_transition"
	CodeOrderNotActive          = "order_not_active"
	CodeInternal                = "internal"
)

// CommandHandler executes commands from the command queue and answers the
// caller on its reply queue. Business rejections are acknowledged with an
// error reply; anything else goes to the dead-letter queue.
type CommandHandler struct {
	orders  interfaces.OrderService
	prints  interfaces.PrintQueue
	replies interfaces.ReplyPublisher
	logger  logger.Logger
}

func NewCommandHandler(orders interfaces.OrderService, prints interfaces.PrintQueue, replies interfaces.ReplyPublisher, logger logger.Logger) *CommandHandler {
	return &CommandHandler{
		orders:  orders,
		prints:  prints,
		replies: replies,
		logger:  logger,
	}
}

func (h *CommandHandler) HandleCommand(ctx context.Context, d interfaces.Delivery) error {
	if d.CorrelationID != "" {
		ctx = logger.WithRequestID(ctx, d.CorrelationID)
	}
	ctx, requestID := logger.EnsureRequestID(ctx)

	var msg interfaces.CommandMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse command message", requestID, nil, err)
		h.reply(ctx, d, requestID, failure(CodeBadRequest, "malformed command envelope", nil))
		return fmt.Errorf("malformed command envelope: %w", err)
	}

	result, err := h.dispatch(ctx, msg)
	if err != nil {
		var decodeErr *payloadError
		switch {
		case errors.As(err, &decodeErr):
			h.logger.Error("message_parse_failed", "Failed to decode command payload", requestID, map[string]interface{}{
				"type": msg.Type,
			}, err)
			h.reply(ctx, d, requestID, failure(CodeBadRequest, err.Error(), nil))
			return err
		case domain.IsBusinessError(err):
			h.logger.Warn("command_rejected", err.Error(), requestID, map[string]interface{}{
				"type": msg.Type,
			})
			h.reply(ctx, d, requestID, rejection(err))
			return nil
		default:
			h.logger.Error("command_failed", "Command failed", requestID, map[string]interface{}{
				"type": msg.Type,
			}, err)
			h.reply(ctx, d, requestID, failure(CodeInternal, "internal error", nil))
			return err
		}
	}

	h.logger.Debug("command_handled", "Command handled", requestID, map[string]interface{}{
		"type": msg.Type,
	})
	h.reply(ctx, d, requestID, interfaces.ReplyMessage{OK: true, Result: result})
	return nil
}

type payloadError struct {
	commandType string
	err         error
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("invalid payload for %s: %v", e.commandType, e.err)
}

func (e *payloadError) Unwrap() error { return e.err }

func decode[T any](msg interfaces.CommandMessage) (T, error) {
	var cmd T
	if len(msg.Payload) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		return cmd, &payloadError{commandType: msg.Type, err: err}
	}
	return cmd, nil
}

func (h *CommandHandler) dispatch(ctx context.Context, msg interfaces.CommandMessage) (interface{}, error) {
	switch msg.Type {
	case interfaces.CommandCreateOrderLine:
		cmd, err := decode[interfaces.CreateOrderLineCommand](msg)
		if err != nil {
			return nil, err
		}
		line, err := h.orders.CreateOrderLine(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return lineView(line), nil

	case interfaces.CommandUpdateOrderLineQuantity:
		cmd, err := decode[interfaces.UpdateOrderLineQuantityCommand](msg)
		if err != nil {
			return nil, err
		}
		line, err := h.orders.UpdateOrderLineQuantity(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return lineView(line), nil

	case interfaces.CommandDeleteOrderLine:
		cmd, err := decode[interfaces.DeleteOrderLineCommand](msg)
		if err != nil {
			return nil, err
		}
		return nil, h.orders.DeleteOrderLine(ctx, cmd)

	case interfaces.CommandSetOrderStatus:
		cmd, err := decode[interfaces.SetOrderStatusCommand](msg)
		if err != nil {
			return nil, err
		}
		if cmd.ChangedBy == "" && msg.ActorID != 0 {
			cmd.ChangedBy = fmt.Sprintf("user:%d", msg.ActorID)
		}
		order, err := h.orders.SetOrderStatus(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return orderView(order), nil

	case interfaces.CommandOpenOrder:
		cmd, err := decode[interfaces.OpenOrderCommand](msg)
		if err != nil {
			return nil, err
		}
		if cmd.UserID == 0 {
			cmd.UserID = msg.ActorID
		}
		order, err := h.orders.OpenOrder(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return orderView(order), nil

	case interfaces.CommandDeleteOrder:
		cmd, err := decode[interfaces.DeleteOrderCommand](msg)
		if err != nil {
			return nil, err
		}
		return nil, h.orders.DeleteOrder(ctx, cmd)

	case interfaces.CommandEnqueuePrintJob:
		cmd, err := decode[interfaces.EnqueuePrintJobCommand](msg)
		if err != nil {
			return nil, err
		}
		job, err := h.prints.EnqueuePrintJob(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return printJobView(job), nil

	case interfaces.CommandCancelPendingPrintJobs:
		n, err := h.prints.CancelPendingPrintJobs(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"cancelled": n}, nil
	}

	return nil, &payloadError{commandType: msg.Type, err: errors.New("unknown command type")}
}

func (h *CommandHandler) reply(ctx context.Context, d interfaces.Delivery, requestID string, reply interfaces.ReplyMessage) {
	if d.ReplyTo == "" {
		return
	}
	correlationID := d.CorrelationID
	if correlationID == "" {
		correlationID = requestID
	}
	if err := h.replies.PublishReply(ctx, d.ReplyTo, correlationID, reply); err != nil {
		h.logger.Error("reply_publish_failed", "Failed to publish command reply", requestID, map[string]interface{}{
			"reply_to": d.ReplyTo,
		}, err)
	}
}

func failure(code, message string, details map[string]interface{}) interfaces.ReplyMessage {
	return interfaces.ReplyMessage{Error: &interfaces.ReplyError{Code: code, Message: message, Details: details}}
}

// rejection maps a business error onto a reply code the caller can act on.
func rejection(err error) interfaces.ReplyMessage {
	var stockErr *domain.InsufficientStockError
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &stockErr):
		return failure(CodeInsufficientStock, err.Error(), map[string]interface{}{
			"stock_unit_id": stockErr.UnitID,
			"unit_name":     stockErr.UnitName,
			"available":     stockErr.Available.String(),
			"required":      stockErr.Required.String(),
		})
	case errors.As(err, &validationErr):
		return failure(CodeValidation, err.Error(), map[string]interface{}{
			"field": validationErr.Field,
		})
	case errors.Is(err, domain.ErrStockUnitNotFound):
		return failure(CodeStockUnitNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return failure(CodeInvalidStatusTransition, err.Error(), nil)
	case errors.Is(err, domain.ErrOrderNotActive):
		return failure(CodeOrderNotActive, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return failure(CodeNotFound, err.Error(), nil)
	}
	return failure(CodeInternal, "internal error", nil)
}
