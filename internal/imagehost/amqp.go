package imagehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue carrying upload jobs.
const DefaultQueue = "place.image.upload"

// AMQPDispatcher publishes jobs to RabbitMQ. The consumer must share the
// filesystem holding the temporary files. When the broker is unreachable the
// job runs on the fallback dispatcher instead.
type AMQPDispatcher struct {
	url      string
	queue    string
	fallback Dispatcher
	logger   *slog.Logger
}

var _ Dispatcher = (*AMQPDispatcher)(nil)

func NewAMQPDispatcher(url, queue string, fallback Dispatcher, logger *slog.Logger) *AMQPDispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPDispatcher{url: url, queue: queue, fallback: fallback, logger: logger}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	err := d.publish(ctx, job)
	if err == nil {
		return nil
	}
	d.logger.WarnContext(ctx, "Failed to publish image job, processing in-process",
		slog.Int64("placeID", job.PlaceID),
		slog.Any("error", err),
	)
	if d.fallback == nil {
		return err
	}
	return d.fallback.Dispatch(ctx, job)
}

func (d *AMQPDispatcher) publish(ctx context.Context, job Job) error {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err = declareQueue(ch, d.queue); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	return ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (d *AMQPDispatcher) Close(ctx context.Context) error {
	if d.fallback == nil {
		return nil
	}
	return d.fallback.Close(ctx)
}

func declareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return q, nil
}

// Consumer processes jobs from the queue until its context is cancelled.
type Consumer struct {
	url       string
	queue     string
	processor *Processor
	logger    *slog.Logger
}

func NewConsumer(url, queue string, processor *Processor, logger *slog.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{url: url, queue: queue, processor: processor, logger: logger}
}

// Run reconnects with exponential backoff and returns when ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	l := c.logger.With(slog.String("component", "image-consumer"), slog.String("queue", c.queue))
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			l.WarnContext(ctx, "Failed to dial broker, retrying", slog.Any("error", err), slog.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.WarnContext(ctx, "Consume loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err = ch.Qos(4, 0, false); err != nil {
		c.logger.WarnContext(ctx, "Failed to set QoS", slog.Any("error", err))
	}
	if _, err = declareQueue(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				// no requeue, a failed upload leaves the placeholder
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		c.logger.ErrorContext(ctx, "Malformed image job", slog.Any("error", err))
		return fmt.Errorf("unmarshal job: %w", err)
	}
	return c.processor.Process(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
