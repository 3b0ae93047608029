package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/asquebay/simple-shop-service/internal/lib/logger"
	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader отдаёт сообщения по очереди, затем io.EOF
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeOrders struct {
	inputs []model.CreateOrderInput
	errs   map[string]error // ошибка по customerId
	// сколько раз подряд ответить сбоем хранилища, по customerId
	failures map[string]int
	// вызывается на каждом сбое хранилища
	onFailure func()
}

func (f *fakeOrders) CreateOrder(_ context.Context, input model.CreateOrderInput) (model.Order, error) {
	f.inputs = append(f.inputs, input)
	id := input.CustomerID.String()
	if err, ok := f.errs[id]; ok {
		return model.Order{}, err
	}
	if f.failures[id] > 0 {
		f.failures[id]--
		if f.onFailure != nil {
			f.onFailure()
		}
		return model.Order{}, model.Persistence("Failed to create order", errors.New("connection reset"))
	}
	return model.Order{ID: int64(len(f.inputs))}, nil
}

func newTestConsumer(reader MessageReader, orders OrderCreator) *Consumer {
	c := newConsumer(reader, orders, logger.Discard())
	c.retryDelay = time.Millisecond
	c.maxRetryDelay = 2 * time.Millisecond
	return c
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"customerId":1,"items":[{"productId":5,"quantity":2}]}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"customerId":2,"items":[{"productId":404,"quantity":1}]}`)},
		{Offset: 4, Value: []byte(`{"customerId":3,"items":[{"productId":5,"quantity":1}]}`)},
	}}
	orders := &fakeOrders{
		errs:     map[string]error{"2": model.ProductNotFound(404)},
		failures: map[string]int{"3": 2},
	}

	c := newTestConsumer(reader, orders)
	c.Run(context.Background())

	// битое сообщение и клиентская ошибка подтверждаются сразу,
	// сбой хранилища повторяется, пока заказ не создан
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)

	require.Len(t, orders.inputs, 5)
	for _, in := range orders.inputs[2:] {
		assert.Equal(t, json.Number("3"), in.CustomerID)
	}
	assert.Equal(t, json.Number("1"), orders.inputs[0].CustomerID)
	require.Len(t, orders.inputs[0].Items, 1)
	assert.Equal(t, json.Number("5"), orders.inputs[0].Items[0].ProductID)
	assert.Equal(t, json.Number("2"), orders.inputs[0].Items[0].Quantity)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

type cancelledReader struct{ fakeReader }

func (r *cancelledReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestConsumerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(&cancelledReader{}, &fakeOrders{}, logger.Discard())

	go c.Run(ctx)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerLeavesFailingMessageUncommittedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 7, Value: []byte(`{"customerId":3,"items":[{"productId":5,"quantity":1}]}`)},
		{Offset: 8, Value: []byte(`{"customerId":4,"items":[{"productId":5,"quantity":1}]}`)},
	}}
	attempts := 0
	orders := &fakeOrders{
		failures: map[string]int{"3": 100},
		onFailure: func() {
			if attempts++; attempts == 3 {
				cancel()
			}
		},
	}

	c := newTestConsumer(reader, orders)
	c.Run(ctx)

	assert.Empty(t, reader.committed)
	// следующее сообщение не читалось, пока первое не обработано
	require.Len(t, reader.msgs, 1)
	assert.EqualValues(t, 8, reader.msgs[0].Offset)
	<-c.Done()
}
