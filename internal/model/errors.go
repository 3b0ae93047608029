package model

import (
	"errors"
	"fmt"
)

// виды ошибок, по которым транспортный слой выбирает код ответа
var (
	// некорректные или отсутствующие входные данные (400)
	ErrInvalidArgument = errors.New("invalid argument")
	// запрошенная сущность отсутствует (404)
	ErrNotFound = errors.New("not found")
	// хранилище не смогло выполнить запись (500)
	ErrPersistence = errors.New("persistence failure")

	// ErrProductNotFound возвращается хранилищем, если товара с таким ID нет
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
)

// Error — ошибка с видом и сообщением, которое можно показать клиенту
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap позволяет errors.Is находить и вид ошибки, и её причину
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// InvalidArgument создаёт ошибку валидации с человекочитаемым сообщением
func InvalidArgument(msg string) error {
	return &Error{Kind: ErrInvalidArgument, Msg: msg}
}

// NotFound создаёт ошибку отсутствующей сущности
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

// Persistence оборачивает ошибку записи в хранилище
func Persistence(msg string, err error) error {
	return &Error{Kind: ErrPersistence, Msg: msg, Err: err}
}

// IsClientError сообщает, что ошибка вызвана входными данными и повтор не поможет
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound)
}

// PublicMessage достаёт сообщение для клиента, если оно есть
func PublicMessage(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg, true
	}
	return "", false
}
