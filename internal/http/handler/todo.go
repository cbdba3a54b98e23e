package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jaekwang-park/todo-dynamo/internal/awsclient"
	"github.com/jaekwang-park/todo-dynamo/internal/middleware"
	"github.com/jaekwang-park/todo-dynamo/internal/model"
	"github.com/jaekwang-park/todo-dynamo/internal/service"
)

type TodoHandler struct {
	svc *service.TodoService
}

func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// ServeHTTP routes /api/v1/todos, /api/v1/todos/{id} and
// /api/v1/todos/{id}/attachment.
func (h *TodoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/todos")
	path = strings.Trim(path, "/")

	parts := strings.SplitN(path, "/", 2)
	todoID := parts[0]
	subPath := ""
	if len(parts) > 1 {
		subPath = parts[1]
	}

	switch {
	case todoID != "" && subPath == "attachment":
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		h.handleAttachment(w, r, todoID)

	case todoID != "" && subPath == "":
		switch r.Method {
		case http.MethodPatch:
			h.handleUpdate(w, r, todoID)
		case http.MethodDelete:
			h.handleDelete(w, r, todoID)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		}

	case todoID == "":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		}

	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	}
}

type itemResponse struct {
	Item model.TodoItem `json:"item"`
}

type itemsResponse struct {
	Items []model.TodoItem `json:"items"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

type createTodoRequest struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
}

func (h *TodoHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	item, err := h.svc.Create(r.Context(), middleware.GetUserID(r), service.CreateTodoInput{
		Name:    req.Name,
		DueDate: req.DueDate,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, itemResponse{Item: item})
}

func (h *TodoHandler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListForUser(r.Context(), middleware.GetUserID(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, itemsResponse{Items: items})
}

type updateTodoRequest struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
	Done    bool   `json:"done"`
}

func (h *TodoHandler) handleUpdate(w http.ResponseWriter, r *http.Request, todoID string) {
	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	item, err := h.svc.Update(r.Context(), middleware.GetUserID(r), todoID, service.UpdateTodoInput{
		Name:    req.Name,
		DueDate: req.DueDate,
		Done:    req.Done,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, itemResponse{Item: item})
}

func (h *TodoHandler) handleDelete(w http.ResponseWriter, r *http.Request, todoID string) {
	if err := h.svc.Delete(r.Context(), middleware.GetUserID(r), todoID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) handleAttachment(w http.ResponseWriter, r *http.Request, todoID string) {
	url, err := h.svc.CreateAttachmentUploadURL(r.Context(), middleware.GetUserID(r), todoID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, uploadURLResponse{UploadURL: url})
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
	default:
		if info, ok := awsclient.LookupError(err); ok {
			slog.WarnContext(r.Context(), "store request failed",
				"error", err,
				"code", info.Code,
				"aws_code", awsclient.ErrorCode(err),
			)
			WriteError(w, info.Status, info.Code, "service temporarily unavailable")
			return
		}
		slog.ErrorContext(r.Context(), "request failed", "error", err, "aws_code", awsclient.ErrorCode(err))
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
