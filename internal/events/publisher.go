// Package events publishes domain events to a RabbitMQ topic exchange. The
// routing key of every event is its type.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, msg Envelope) error
	Close() error
}

type ConnectionOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger
}

const maxDelay = 30 * time.Second

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger

	mu sync.Mutex
	ch *amqp091.Channel
}

// Dial connects with exponential backoff, declares the durable topic exchange
// and puts the publishing channel in confirm mode.
func Dial(ctx context.Context, opts ConnectionOptions) (Publisher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}

	conn, err := dialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", opts.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &rmqPublisher{
		conn:     conn,
		exchange: opts.Exchange,
		log:      opts.Logger,
		ch:       ch,
	}, nil
}

func dialWithRetry(ctx context.Context, opts ConnectionOptions) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				opts.Logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == opts.RetryAttempts {
			break
		}

		sleep := opts.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDelay {
			sleep = maxDelay
		}
		opts.Logger.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", opts.RetryAttempts, lastErr)
}

func (r *rmqPublisher) Publish(ctx context.Context, msg Envelope) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Meta.Type, err)
	}

	msgID := msg.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	cid := msgID
	if msg.Meta.CorrelationID != nil {
		cid = *msg.Meta.CorrelationID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(
		ctx, r.exchange, msg.Meta.Type, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msgID,
			CorrelationId: cid,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Meta.Type, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", msg.Meta.Type, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker nacked", msg.Meta.Type)
	}
	r.log.Debug("published", slog.String("key", msg.Meta.Type), slog.String("exchange", r.exchange))
	return nil
}

func (r *rmqPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		_ = r.ch.Close()
	}
	return r.conn.Close()
}

// Noop drops every event. It is the publisher when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Envelope) error { return nil }
func (Noop) Close() error                            { return nil }

// PublishBestEffort publishes and logs a failure instead of returning it.
// Domain state is already committed when events go out.
func PublishBestEffort(ctx context.Context, p Publisher, logger *slog.Logger, eventType string, data any) {
	if p == nil {
		return
	}
	env := NewEnvelope(eventType, data)
	if err := p.Publish(ctx, env); err != nil && logger != nil {
		logger.Warn("event publish failed",
			slog.String("event_type", eventType),
			slog.String("event_id", env.Meta.ID),
			slog.String("error", err.Error()),
		)
	}
}
