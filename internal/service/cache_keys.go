package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/asquebay/simple-shop-service/internal/model"
)

// пространства ключей кэша
const (
	productNamespace     = "product"
	productsNamespace    = "products"
	topProductsNamespace = "top-products"

	productKeyPrefix     = productNamespace + ":"
	productsKeyPrefix    = productsNamespace + ":"
	topProductsKeyPrefix = topProductsNamespace + ":"
)

// рейтинг по району кэшируется на фиксированные 5 минут
const topProductsTTL = 5 * time.Minute

// parseProductID разбирает идентификатор товара из пути запроса
// целые числа в записи с точкой или экспонентой ("5.0", "1e1") тоже принимаются
func parseProductID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, true
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	// 2^63 уже не помещается в int64
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// productKeyFromRaw строит ключ для ещё не провалидированного идентификатора
// числовые варианты записи одного id ("05", " 5", "5.0") сводятся к одному ключу
func productKeyFromRaw(raw string) string {
	if id, ok := parseProductID(raw); ok {
		return productKey(id)
	}
	return productKeyPrefix + raw
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}

// productsKey сериализует фильтр в том виде, в каком его прислал клиент
func productsKey(filter model.ProductFilter) (string, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	return productsKeyPrefix + string(raw), nil
}

func topProductsKey(area string) string {
	return topProductsKeyPrefix + area
}
