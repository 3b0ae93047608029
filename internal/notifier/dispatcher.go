package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asquebay/simple-shop-service/internal/metrics"
)

// OrderCreated описывает событие о новом заказе
type OrderCreated struct {
	OrderID    int64
	CustomerID int64
}

// Message возвращает текст уведомления для человека
func (e OrderCreated) Message() string {
	return fmt.Sprintf("New order #%d created by customer #%d", e.OrderID, e.CustomerID)
}

// Sender доставляет уведомление через конкретный транспорт
type Sender interface {
	Send(ctx context.Context, event OrderCreated) error
}

// Dispatcher отправляет уведомления в фоне
// вызывающий не ждёт доставки и не узнаёт о её ошибках
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер
// sender == nil означает, что уведомления не настроены: каждый вызов только логирует предупреждение
func NewDispatcher(sender Sender, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if sender == nil {
		log.Warn("order notifications are not configured, notifications will be skipped")
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		metrics: m,
		log:     log.With(slog.String("component", "order_notifier")),
	}
}

// NotifyOrderCreated запускает отправку и сразу возвращает управление
func (d *Dispatcher) NotifyOrderCreated(orderID, customerID int64) {
	event := OrderCreated{OrderID: orderID, CustomerID: customerID}
	log := d.log.With(slog.Int64("order_id", orderID))

	if d.sender == nil {
		d.metrics.Notification(metrics.NotificationSkipped)
		log.Warn("notification client not initialized, skipping notification")
		return
	}

	// Add под тем же мьютексом, что и закрытие в Wait
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.metrics.Notification(metrics.NotificationSkipped)
		log.Warn("dispatcher is shutting down, skipping notification")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		// контекст запроса сюда не передаётся: отправка живёт дольше ответа
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, event); err != nil {
			d.metrics.Notification(metrics.NotificationFailed)
			log.Error("failed to send order notification", slog.String("error", err.Error()))
			return
		}
		d.metrics.Notification(metrics.NotificationSent)
		log.Info("order notification sent")
	}()
}

// Wait перестаёт принимать новые уведомления и дожидается отправок,
// которые уже в полёте, или отмены ctx
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
