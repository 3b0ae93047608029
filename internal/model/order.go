package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxItemQuantity ограничивает количество в одной позиции размером колонки order_items.quantity
const MaxItemQuantity = math.MaxInt32

// Order представляет сохранённый заказ вместе с позициями
// после создания заказ не изменяется
type Order struct {
	ID         int64       `json:"id"`
	CustomerID int64       `json:"customerId"`
	CreatedAt  time.Time   `json:"createdAt"`
	Items      []OrderItem `json:"items"`
}

// OrderItem хранит позицию заказа вместе с подгруженным товаром
type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"orderId"`
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// CreateOrderInput — заказ в том виде, в каком он пришёл от клиента
// числа хранятся как json.Number, чтобы отличать "не передано" от "не число"
type CreateOrderInput struct {
	CustomerID json.Number      `json:"customerId" validate:"required,numeric"`
	Items      []OrderItemInput `json:"items"`
}

// OrderItemInput описывает позицию заказа от клиента
type OrderItemInput struct {
	ProductID json.Number `json:"productId" validate:"required,numeric"`
	Quantity  json.Number `json:"quantity" validate:"required,numeric"`
}

// NewOrder описывает провалидированный заказ, готовый к сохранению
type NewOrder struct {
	CustomerID int64
	Items      []NewOrderItem
}

// NewOrderItem хранит провалидированную позицию заказа
type NewOrderItem struct {
	ProductID int64
	Quantity  int
}

var validate = validator.New()

// ParseCustomerID проверяет, что идентификатор клиента передан и является целым числом
func (in CreateOrderInput) ParseCustomerID() (int64, error) {
	if err := validate.Var(in.CustomerID, "required,numeric"); err != nil {
		return 0, InvalidArgument("Order must have a valid customer ID")
	}
	id, err := in.CustomerID.Int64()
	if err != nil {
		return 0, InvalidArgument("Order must have a valid customer ID")
	}
	return id, nil
}

// Parse проверяет позицию заказа: оба поля числовые, количество положительное
func (it OrderItemInput) Parse() (NewOrderItem, error) {
	if err := validate.Struct(it); err != nil {
		return NewOrderItem{}, InvalidArgument("Invalid product ID or quantity")
	}

	productID, err := it.ProductID.Int64()
	if err != nil {
		return NewOrderItem{}, InvalidArgument("Invalid product ID or quantity")
	}
	qty, err := it.Quantity.Int64()
	if err != nil || qty <= 0 || qty > MaxItemQuantity {
		return NewOrderItem{}, InvalidArgument("Invalid product ID or quantity")
	}

	return NewOrderItem{ProductID: productID, Quantity: int(qty)}, nil
}

// ProductIDs возвращает уникальные идентификаторы товаров в порядке первого появления
func (o NewOrder) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ProductNotFound возвращает ошибку для позиции, ссылающейся на несуществующий товар
func ProductNotFound(id any) error {
	return NotFound(fmt.Sprintf("Product with ID %v not found", id))
}
