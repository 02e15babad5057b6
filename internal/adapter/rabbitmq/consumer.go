package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnectDelay = 5 * time.Second

type consumer struct {
	conn    Connection
	cfg     config.RabbitMQConfig
	logger  logger.Logger
	retryIn time.Duration
}

func NewConsumer(conn Connection, cfg config.RabbitMQConfig, lgr logger.Logger) interfaces.MessageConsumer {
	return &consumer{conn: conn, cfg: cfg, logger: lgr, retryIn: reconnectDelay}
}

func (c *consumer) ConsumeCommands(ctx context.Context, handler interfaces.CommandHandler) error {
	return c.keepConsuming(ctx, "commands", func() error {
		return c.consumeCommands(ctx, handler)
	})
}

func (c *consumer) ConsumeEvents(ctx context.Context, handler interfaces.EventHandler) error {
	return c.keepConsuming(ctx, "events", func() error {
		return c.consumeEvents(ctx, handler)
	})
}

// keepConsuming reruns consume until ctx is cancelled, waiting between
// attempts after the channel or connection drops.
func (c *consumer) keepConsuming(ctx context.Context, name string, consume func() error) error {
	for {
		err := consume()

		// Если контекст отменен - выходим
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.logger.Error("consumer_disconnected", fmt.Sprintf("%s consumer disconnected, reconnecting in %s", name, c.retryIn), "", nil, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryIn):
		}
	}
}

func (c *consumer) consumeCommands(ctx context.Context, handler interfaces.CommandHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := c.setupCommandInfrastructure(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.cfg.CommandQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer_started", "Consuming commands", "", map[string]interface{}{
		"queue": c.cfg.CommandQueue,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			err := handler(ctx, interfaces.Delivery{
				Body:          msg.Body,
				CorrelationID: msg.CorrelationId,
				ReplyTo:       msg.ReplyTo,
			})
			if err != nil {
				// В DLQ (requeue=false)
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

func (c *consumer) consumeEvents(ctx context.Context, handler interfaces.EventHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.ExchangeDeclare(c.cfg.EventExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Временная эксклюзивная очередь на каждого подписчика
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.cfg.EventExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			// Ошибки обработки уведомлений игнорируем
			_ = handler(ctx, msg.Body)
		}
	}
}

func (c *consumer) setupCommandInfrastructure(ch Channel) error {
	dlx := c.cfg.CommandQueue + "_dlx"
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	dlq := c.cfg.CommandQueue + "_dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": dlx,
	}
	if _, err := ch.QueueDeclare(c.cfg.CommandQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare command queue: %w", err)
	}

	return nil
}
