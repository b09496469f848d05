package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const orderTopic = "order-events"

type OrderCreatedEvent struct {
	EventID     string             `json:"event_id"`
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	TotalAmount string             `json:"total_amount"`
	Status      string             `json:"status"`
	Items       []domain.OrderItem `json:"items"`
	Timestamp   time.Time          `json:"timestamp"`
}

// KafkaPublisher emits order events best-effort. A broker outage trips the
// breaker instead of stalling checkouts on write timeouts.
type KafkaPublisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker[any]
	logger  *zap.Logger
}

func NewKafkaPublisher(brokers string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        orderTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 5 * time.Second,
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "order-events",
		Timeout: 30 * time.Second,
	})

	return &KafkaPublisher{writer: writer, breaker: breaker, logger: logger}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	event := OrderCreatedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.String(),
		Status:      string(order.Status),
		Items:       order.Items,
		Timestamp:   time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return nil, p.writer.WriteMessages(writeCtx, kafka.Message{
			Key:   []byte(order.ID),
			Value: data,
		})
	})
	if err != nil {
		p.logger.Warn("failed to publish order event",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return err
	}

	p.logger.Info("order event published",
		zap.String("event_id", event.EventID),
		zap.String("order_id", order.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
