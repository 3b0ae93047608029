package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gregdel/pushover"
)

// параметры уведомления о заказе
const (
	pushoverTitle    = "New Order Received"
	pushoverPriority = pushover.PriorityHigh
	pushoverRetry    = 30 * time.Second
	pushoverExpire   = 3 * time.Hour
	pushoverSound    = "cosmic"
)

// ErrNotConfigured возвращается, если не заданы учётные данные
var ErrNotConfigured = errors.New("pushover credentials not configured")

// Pushover отправляет уведомления через Pushover Messages API
type Pushover struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

// NewPushover создаёт клиент Pushover
func NewPushover(token, user string) (*Pushover, error) {
	if token == "" || user == "" {
		return nil, ErrNotConfigured
	}
	return &Pushover{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(user),
	}, nil
}

// Send публикует одно уведомление
// клиент pushover не принимает контекст, поэтому ждём ответа не дольше ctx
func (p *Pushover) Send(ctx context.Context, event OrderCreated) error {
	const op = "notifier.Pushover.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := pushover.NewMessageWithTitle(event.Message(), pushoverTitle)
	msg.Priority = pushoverPriority
	msg.Retry = pushoverRetry
	msg.Expire = pushoverExpire
	msg.Sound = pushoverSound

	errCh := make(chan error, 1)
	go func() {
		_, err := p.app.SendMessage(msg, p.recipient)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
