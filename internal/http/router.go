package http

import (
	"net/http"

	"github.com/jaekwang-park/todo-dynamo/internal/http/handler"
	"github.com/jaekwang-park/todo-dynamo/internal/service"
)

func NewRouter(todoSvc *service.TodoService) http.Handler {
	mux := http.NewServeMux()

	// Health check stays outside /api/v1 for load balancer probes
	mux.Handle("/health", handler.NewHealthHandler())

	todoHandler := handler.NewTodoHandler(todoSvc)
	mux.Handle("/api/v1/todos", todoHandler)
	mux.Handle("/api/v1/todos/", todoHandler)

	return mux
}
