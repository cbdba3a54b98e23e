package repository

import (
	"errors"
	"log/slog"
)

const (
	DefaultCreatedAtIndex = "CreatedAtIndex"
	DefaultTodoIDIndex    = "TodoIdIndex"
)

// Option is a functional option for configuring a [DynamoTodoRepository].
type Option func(*Options)

// Options holds the configuration for a [DynamoTodoRepository].
type Options struct {
	createdAtIndex string
	todoIDIndex    string
	logger         *slog.Logger
}

func newOptions() *Options {
	return &Options{
		createdAtIndex: DefaultCreatedAtIndex,
		todoIDIndex:    DefaultTodoIDIndex,
		logger:         slog.Default(),
	}
}

func (o *Options) validate() error {
	if o.createdAtIndex == "" {
		return errors.New("created-at index name cannot be empty")
	}
	if o.todoIDIndex == "" {
		return errors.New("todo-id index name cannot be empty")
	}
	if o.logger == nil {
		return errors.New("logger cannot be nil")
	}
	return nil
}

// WithCreatedAtIndex sets the secondary index used to list a user's items in
// creation order. Partition key: userId, sort key: createdAt.
func WithCreatedAtIndex(name string) Option {
	return func(o *Options) {
		o.createdAtIndex = name
	}
}

// WithTodoIDIndex sets the global secondary index used to find an item by
// its id alone. Partition key: todoId.
func WithTodoIDIndex(name string) Option {
	return func(o *Options) {
		o.todoIDIndex = name
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}
