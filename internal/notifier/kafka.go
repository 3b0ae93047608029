package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// тип события в топике уведомлений
const orderCreatedEvent = "order.created"

// MessageWriter описывает часть kafka.Writer, нужную для публикации
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type orderCreatedPayload struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"orderId"`
	CustomerID int64     `json:"customerId"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Kafka публикует события о заказах в топик
type Kafka struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaWriter настраивает продюсера для топика уведомлений
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// ждём подтверждения от лидера партиции
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafka создаёт отправителя поверх writer
func NewKafka(writer MessageWriter) *Kafka {
	return &Kafka{writer: writer, now: time.Now}
}

// Send публикует событие, ключом служит идентификатор заказа
func (k *Kafka) Send(ctx context.Context, event OrderCreated) error {
	const op = "notifier.Kafka.Send"

	payload, err := json.Marshal(orderCreatedPayload{
		Type:       orderCreatedEvent,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Message:    event.Message(),
		OccurredAt: k.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(orderCreatedEvent)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: failed to write message: %w", op, err)
	}
	return nil
}

// Close закрывает продюсера
func (k *Kafka) Close() error {
	return k.writer.Close()
}
