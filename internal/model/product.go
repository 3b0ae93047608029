package model

import (
	"math"
	"time"
)

const (
	// DefaultPage используется, если клиент не передал номер страницы
	DefaultPage = 1
	// MaxPageLimit — верхняя граница размера страницы каталога,
	// она же значение по умолчанию
	MaxPageLimit = 10
	// TopProductsLimit ограничивает длину рейтинга товаров по району
	TopProductsLimit = 10
)

// Product представляет товар каталога
// после создания товар не изменяется
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Area      string    `json:"area"`
	CreatedAt time.Time `json:"createdAt"`
}

// TopProduct — проекция товара вместе с количеством заказанных позиций в районе
// вычисляется на лету и нигде отдельно не хранится
type TopProduct struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Area       string `json:"area"`
	OrderCount int64  `json:"orderCount"`
}

// ProductFilter описывает параметры выборки каталога в том виде, в каком их прислал клиент
// nil-поля означают "не задано", нормализация происходит в Normalize
type ProductFilter struct {
	Categories []string `json:"categories,omitempty"`
	Page       *int     `json:"page,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
}

// Normalize возвращает эффективные параметры выборки:
// пустой список категорий превращается в nil (без фильтра),
// page не меньше 1, limit по умолчанию 10 и не больше 10
func (f ProductFilter) Normalize() (categories []string, page, limit int) {
	if len(f.Categories) > 0 {
		categories = f.Categories
	}

	page = DefaultPage
	if f.Page != nil && *f.Page > DefaultPage {
		page = *f.Page
	}

	limit = MaxPageLimit
	if f.Limit != nil && *f.Limit > 0 && *f.Limit < MaxPageLimit {
		limit = *f.Limit
	}

	return categories, page, limit
}

// Offset считает смещение для выбранной страницы
// при переполнении возвращает math.MaxInt, такая страница заведомо пуста
func Offset(page, limit int) int {
	if page <= DefaultPage || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}
