package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/asquebay/simple-shop-service/internal/model"
)

// максимальный размер тела запроса на создание заказа
const maxOrderBodyBytes = 1 << 20

// ProductReader определяет интерфейс для сервиса каталога
// Это позволяет хэндлеру не зависеть от конкретной реализации сервиса
type ProductReader interface {
	GetAllProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	GetProductByID(ctx context.Context, rawID string) (model.Product, error)
	GetTopProducts(ctx context.Context, area string) ([]model.TopProduct, error)
}

// OrderCreator определяет интерфейс для сервиса, который создаёт заказы
type OrderCreator interface {
	CreateOrder(ctx context.Context, input model.CreateOrderInput) (model.Order, error)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	products ProductReader
	orders   OrderCreator
	limiter  *RateLimiter
	metrics  http.Handler
	log      *slog.Logger
	mux      *http.ServeMux
	root     http.Handler
}

// Option настраивает необязательные части Handler
type Option func(*Handler)

// WithRateLimiter включает ограничение частоты запросов
func WithRateLimiter(l *RateLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithMetrics публикует метрики по GET /metrics
func WithMetrics(metrics http.Handler) Option {
	return func(h *Handler) { h.metrics = metrics }
}

// NewHandler создает новый экземпляр Handler
func NewHandler(products ProductReader, orders OrderCreator, log *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		products: products,
		orders:   orders,
		log:      log,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerRoutes()
	h.root = h.accessLog(h.recoverPanic(h.mux))
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	h.mux.Handle("GET /product", h.throttle(http.HandlerFunc(h.getAllProducts)))
	h.mux.Handle("GET /product/top/{area}", h.throttle(http.HandlerFunc(h.getTopProducts)))
	// пустой район отдаём в сервис, чтобы ответ был 400, а не 404
	h.mux.Handle("GET /product/top/{$}", h.throttle(http.HandlerFunc(h.getTopProducts)))
	// карточка товара не ограничивается по частоте
	h.mux.HandleFunc("GET /product/{id}", h.getProductByID)
	h.mux.Handle("POST /order", h.throttle(http.HandlerFunc(h.createOrder)))

	h.mux.HandleFunc("GET /healthz", h.healthz)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *Handler) throttle(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware(next)
}

func (h *Handler) getAllProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	products, err := h.products.GetAllProducts(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handler) getTopProducts(w http.ResponseWriter, r *http.Request) {
	top, err := h.products.GetTopProducts(r.Context(), r.PathValue("area"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, top)
}

func (h *Handler) getProductByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProductByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBodyBytes))
	// числа оставляем как есть, валидация решит, числовые ли они
	dec.UseNumber()

	var input model.CreateOrderInput
	if err := dec.Decode(&input); err != nil {
		h.log.Debug("failed to decode order body", slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseProductFilter собирает фильтр из query-параметров
// категории принимаются как categories[]=a&categories[]=b и как categories=a
func parseProductFilter(r *http.Request) (model.ProductFilter, error) {
	q := r.URL.Query()

	var filter model.ProductFilter
	for _, key := range []string{"categories[]", "categories"} {
		for _, c := range q[key] {
			if c != "" {
				filter.Categories = append(filter.Categories, c)
			}
		}
	}

	var err error
	if filter.Page, err = optionalInt(q.Get("page"), "page"); err != nil {
		return model.ProductFilter{}, err
	}
	if filter.Limit, err = optionalInt(q.Get("limit"), "limit"); err != nil {
		return model.ProductFilter{}, err
	}

	return filter, nil
}

func optionalInt(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, model.InvalidArgument(name + " must be a number")
	}
	return &v, nil
}

// respondServiceError переводит вид ошибки в HTTP-статус
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.log.Error("internal server error", slog.String("error", err.Error()))
	}

	msg, ok := model.PublicMessage(err)
	if !ok {
		msg = strings.ToLower(http.StatusText(status))
	}

	h.respondError(w, status, msg)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
