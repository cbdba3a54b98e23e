package repository

import (
	"context"
	"errors"

	"github.com/jaekwang-park/todo-dynamo/internal/model"
)

var (
	// ErrNotFound is returned when the addressed item does not exist.
	ErrNotFound = errors.New("todo not found")
	// ErrAlreadyExists is returned by Create when the key is already taken.
	ErrAlreadyExists = errors.New("todo already exists")
)

type TodoRepository interface {
	GetAll(ctx context.Context) ([]model.TodoItem, error)
	ListByUser(ctx context.Context, userID string) ([]model.TodoItem, error)
	Get(ctx context.Context, userID, todoID string) (model.TodoItem, error)
	FindByID(ctx context.Context, todoID string) (model.TodoItem, error)
	Create(ctx context.Context, item model.TodoItem) (model.TodoItem, error)
	Update(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error)
	SetAttachmentURL(ctx context.Context, userID, todoID, url string) error
	Delete(ctx context.Context, userID, todoID string) error
}
