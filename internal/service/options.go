package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Option func(*TodoService)

// WithClock overrides time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *TodoService) {
		s.now = now
	}
}

// WithIDGenerator overrides the UUIDv4 todo id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *TodoService) {
		s.newID = newID
	}
}

// WithPrivateAttachments makes listings return pre-signed download URLs
// instead of public object URLs.
func WithPrivateAttachments(private bool) Option {
	return func(s *TodoService) {
		s.privateAttachments = private
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *TodoService) {
		s.logger = logger
	}
}

func defaultIDGenerator() string {
	return uuid.NewString()
}
