package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New создаёт и настраивает новый экземпляр slog.Logger, пишущий в stdout
// уровень и формат (text или json) задаются строками из конфига
func New(levelStr, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, levelStr, format)
}

// NewWithWriter работает как New, но пишет логи в w
func NewWithWriter(w io.Writer, levelStr, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true, // нужно, чтобы видеть файл и строку, откуда был вызов лога
		Level:     ParseLevel(levelStr),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		// для продакшена: логи удобно собирать агрегатором
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// для локальной разработки
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel преобразует строковый уровень из конфига в slog.Level
// по умолчанию используем INFO, если в конфиге указано что-то некорректное
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard возвращает логгер, который ничего не пишет (для тестов)
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
