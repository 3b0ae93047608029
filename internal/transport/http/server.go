package http

import (
	"context"
	"net/http"
	"time"
)

// Server — это обёртка над стандартным http.Server
type Server struct {
	httpServer *http.Server
}

// NewServer создает и конфигурирует экземпляр Server
func NewServer(port string, handler http.Handler, timeout time.Duration) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              port,
			Handler:           handler,
			ReadTimeout:       timeout,
			ReadHeaderTimeout: timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       4 * timeout,
		},
	}
}

// Run запускает HTTP-сервер и блокируется до его остановки
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown дожидается завершения активных запросов и останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
