package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(productID, quantity string) model.OrderItemInput {
	return model.OrderItemInput{ProductID: json.Number(productID), Quantity: json.Number(quantity)}
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   model.CreateOrderInput
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing customer",
			input:   model.CreateOrderInput{Items: []model.OrderItemInput{item("5", "1")}},
			wantErr: model.ErrInvalidArgument,
			wantMsg: "Order must have a valid customer ID",
		},
		{
			name:    "non numeric customer",
			input:   model.CreateOrderInput{CustomerID: "bob", Items: []model.OrderItemInput{item("5", "1")}},
			wantErr: model.ErrInvalidArgument,
			wantMsg: "Order must have a valid customer ID",
		},
		{
			name:    "zero items",
			input:   model.CreateOrderInput{CustomerID: "1"},
			wantErr: model.ErrInvalidArgument,
			wantMsg: "Order must contain at least one item",
		},
		{
			name:    "zero quantity",
			input:   model.CreateOrderInput{CustomerID: "1", Items: []model.OrderItemInput{item("5", "0")}},
			wantErr: model.ErrInvalidArgument,
			wantMsg: "Invalid product ID or quantity",
		},
		{
			name:    "non numeric product",
			input:   model.CreateOrderInput{CustomerID: "1", Items: []model.OrderItemInput{item("x", "1")}},
			wantErr: model.ErrInvalidArgument,
			wantMsg: "Invalid product ID or quantity",
		},
		{
			name:    "missing product",
			input:   model.CreateOrderInput{CustomerID: "1", Items: []model.OrderItemInput{item("404", "1")}},
			wantErr: model.ErrNotFound,
			wantMsg: "Product with ID 404 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, product(5, "Test Product", "Maadi"))

			_, err := env.orders.CreateOrder(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			msg, ok := model.PublicMessage(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, msg)

			assert.Zero(t, env.catalog.called("CreateOrder"))
			assert.Empty(t, env.notifier.calls())
			assert.Empty(t, env.cache.deleted)
		})
	}
}

func TestCreateOrderProductFiveScenario(t *testing.T) {
	p5 := product(5, "Test Product", "Maadi")
	env := newTestEnv(t, p5)
	ctx := context.Background()

	// прогреваем кэш, который должен быть сброшен
	_, err := env.products.GetProductByID(ctx, "5")
	require.NoError(t, err)
	_, err = env.products.GetAllProducts(ctx, model.ProductFilter{})
	require.NoError(t, err)
	env.catalog.top = []model.TopProduct{{ID: 5, Name: p5.Name, Area: "Maadi", OrderCount: 0}}
	_, err = env.products.GetTopProducts(ctx, "Maadi")
	require.NoError(t, err)
	require.Len(t, env.cache.data, 3)

	order, err := env.orders.CreateOrder(ctx, model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("5", "2")},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, p5, order.Items[0].Product)
	assert.EqualValues(t, 1, order.CustomerID)

	assert.Equal(t, 1, env.catalog.called("CreateOrder"))
	assert.Equal(t, []notification{{orderID: order.ID, customerID: 1}}, env.notifier.calls())

	assert.Equal(t, []string{"product:5"}, env.cache.deleted)
	assert.ElementsMatch(t, []string{"products:", "top-products:"}, env.cache.prefixes)
	assert.Empty(t, env.cache.data)
}

func TestCreateOrderNotifiesBeforeInvalidation(t *testing.T) {
	env := newTestEnv(t, product(5, "Test Product", "Maadi"))

	order, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("5", "2")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, order.ID)

	assert.Equal(t, []string{
		"notify 1",
		"delete product:5",
		"deletePrefix products:",
		"deletePrefix top-products:",
	}, env.journal.recorded())
}

func TestCreateOrderInvalidatesEveryDistinctProduct(t *testing.T) {
	env := newTestEnv(t,
		product(1, "A", "Maadi"),
		product(2, "B", "Maadi"),
		product(3, "C", "Zamalek"),
	)

	_, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "7",
		Items: []model.OrderItemInput{
			item("1", "1"),
			item("2", "3"),
			item("1", "2"),
			item("3", "1"),
		},
	})
	require.NoError(t, err)

	require.Len(t, env.catalog.saved, 1)
	assert.Len(t, env.catalog.saved[0].Items, 4)
	assert.Equal(t, []string{"product:1", "product:2", "product:3"}, env.cache.deleted)
	assert.Len(t, env.notifier.calls(), 1)
}

func TestCreateOrderOneMissingProductNeverPersists(t *testing.T) {
	env := newTestEnv(t, product(1, "A", "Maadi"))

	_, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("1", "1"), item("2", "1")},
	})
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, env.catalog.called("CreateOrder"))
	assert.Empty(t, env.notifier.calls())
}

func TestCreateOrderPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, product(1, "A", "Maadi"))
	env.catalog.saveErr = errStoreDown

	_, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("1", "1")},
	})
	require.ErrorIs(t, err, model.ErrPersistence)
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, env.notifier.calls())
	assert.Empty(t, env.cache.deleted)
}

func TestCreateOrderRepositoryClientErrorKeepsKind(t *testing.T) {
	env := newTestEnv(t, product(1, "A", "Maadi"))
	// товар удалили между проверкой и записью
	env.catalog.saveErr = model.ProductNotFound(1)

	_, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("1", "1")},
	})
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, model.ErrPersistence)
}

func TestCreateOrderInvalidationErrorsAreNotFatal(t *testing.T) {
	env := newTestEnv(t, product(1, "A", "Maadi"))
	env.cache.deleteErr = errors.New("cache unavailable")

	order, err := env.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("1", "1")},
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Len(t, env.cache.deleted, 1)
	assert.Len(t, env.cache.prefixes, 2)
}

func TestCreateOrderInvalidationSurvivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t, product(1, "A", "Maadi"))

	ctx, cancel := context.WithCancel(context.Background())
	// отменяем запрос сразу после записи
	env.orders.repo = cancelAfterSave{OrderRepository: env.catalog, cancel: cancel}

	_, err := env.orders.CreateOrder(ctx, model.CreateOrderInput{
		CustomerID: "1",
		Items:      []model.OrderItemInput{item("1", "1")},
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.NoError(t, env.cache.deleteCtxErr)
	assert.Len(t, env.cache.deleted, 1)
}

type cancelAfterSave struct {
	OrderRepository
	cancel context.CancelFunc
}

func (c cancelAfterSave) CreateOrder(ctx context.Context, o model.NewOrder) (model.Order, error) {
	order, err := c.OrderRepository.CreateOrder(ctx, o)
	c.cancel()
	return order, err
}
