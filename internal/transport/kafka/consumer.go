package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/segmentio/kafka-go"
)

const (
	// пауза после ошибки чтения из брокера
	fetchRetryDelay = time.Second
	// пределы паузы между повторами обработки одного сообщения
	handleRetryDelay    = time.Second
	maxHandleRetryDelay = 30 * time.Second
)

// OrderCreator — это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type OrderCreator interface {
	CreateOrder(ctx context.Context, input model.CreateOrderInput) (model.Order, error)
}

// MessageReader описывает часть kafka.Reader, которой пользуется консьюмер
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает заявки на создание заказов из Kafka
type Consumer struct {
	reader  MessageReader
	service OrderCreator
	log     *slog.Logger

	retryDelay    time.Duration
	maxRetryDelay time.Duration
	done          chan struct{}
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service OrderCreator, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})

	return newConsumer(reader, service, log)
}

func newConsumer(reader MessageReader, service OrderCreator, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:        reader,
		service:       service,
		log:           log.With(slog.String("component", "kafka_consumer")),
		retryDelay:    handleRetryDelay,
		maxRetryDelay: maxHandleRetryDelay,
		done:          make(chan struct{}),
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
// Run вызывается не больше одного раза, о выходе сообщает Done
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)
	c.log.Info("Kafka consumer started")

	for {
		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// если контекст был отменен во время ожидания, это нормальное завершение
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.Info("Context cancelled, stopping consumer")
				return
			}
			// если ридер был закрыт, тоже выходим
			if errors.Is(err, io.EOF) {
				c.log.Info("Kafka reader closed")
				return
			}
			c.log.Error("failed to fetch message", slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		log := c.log.With(slog.String("topic", msg.Topic), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))
		log.Info("received message")

		// следующий коммит сдвинул бы offset за это сообщение,
		// поэтому повторяем его, пока не обработаем или не получим отмену
		if !c.handleWithRetry(ctx, log, msg) {
			log.Info("Context cancelled, message left uncommitted")
			return
		}

		// offset фиксируем только ПОСЛЕ обработки
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// handleWithRetry повторяет обработку с растущей паузой
// false означает, что ctx отменён, а сообщение так и не обработано
func (c *Consumer) handleWithRetry(ctx context.Context, log *slog.Logger, msg kafka.Message) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, log, msg)
		if err == nil {
			return true
		}
		log.Error("failed to handle message, will retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxRetryDelay)
	}
}

// Done закрывается, когда Run завершился
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// handleMessage разбирает заявку и передаёт её в сервис заказов
// nil означает, что сообщение можно подтвердить, даже если заказ не создан
func (c *Consumer) handleMessage(ctx context.Context, log *slog.Logger, msg kafka.Message) error {
	var input model.CreateOrderInput

	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		// перечитывать битое сообщение бессмысленно
		log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return nil
	}

	order, err := c.service.CreateOrder(ctx, input)
	if err != nil {
		if model.IsClientError(err) {
			// заявка невалидна или ссылается на несуществующий товар, повтор не поможет
			log.Warn("order rejected, skipping", slog.String("error", err.Error()))
			return nil
		}
		return err
	}

	log.Info("order successfully processed", slog.Int64("order_id", order.ID))
	return nil
}

// Close останавливает чтение из Kafka
func (c *Consumer) Close() error {
	c.log.Info("Closing kafka consumer")
	return c.reader.Close()
}
