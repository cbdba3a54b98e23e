package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaekwang-park/todo-dynamo/internal/model"
	"github.com/jaekwang-park/todo-dynamo/internal/repository"
)

// createdAtLayout matches ISO 8601 with millisecond precision, e.g.
// 2025-01-01T00:00:00.000Z. Values sort lexicographically in time order.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// attachmentURLWorkers bounds concurrent URL signing in ListForUser.
const attachmentURLWorkers = 8

// validateDueDate accepts a calendar date or an RFC3339 timestamp. Empty is allowed.
func validateDueDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	return fmt.Errorf("%w: invalid dueDate format, expected YYYY-MM-DD or RFC3339", ErrInvalidInput)
}

// AttachmentIssuer issues attachment URLs keyed by todo id.
type AttachmentIssuer interface {
	ObjectURL(todoID string) string
	UploadURL(ctx context.Context, todoID string) (string, error)
	DownloadURL(ctx context.Context, todoID string) (string, error)
}

type CreateTodoInput struct {
	Name    string
	DueDate string
}

type UpdateTodoInput struct {
	Name    string
	DueDate string
	Done    bool
}

type TodoService struct {
	repo               repository.TodoRepository
	attachments        AttachmentIssuer
	privateAttachments bool
	now                func() time.Time
	newID              func() string
	logger             *slog.Logger
}

func NewTodoService(repo repository.TodoRepository, attachments AttachmentIssuer, opts ...Option) *TodoService {
	s := &TodoService{
		repo:        repo,
		attachments: attachments,
		now:         time.Now,
		newID:       defaultIDGenerator,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *TodoService) Create(ctx context.Context, userID string, input CreateTodoInput) (model.TodoItem, error) {
	if userID == "" {
		return model.TodoItem{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Name) == "" {
		return model.TodoItem{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return model.TodoItem{}, err
	}

	item := model.TodoItem{
		UserID:    userID,
		TodoID:    s.newID(),
		CreatedAt: s.now().UTC().Format(createdAtLayout),
		Name:      input.Name,
		DueDate:   input.DueDate,
		Done:      false,
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to create todo: %w", err)
	}

	s.logger.InfoContext(ctx, "todo created", "user_id", userID, "todo_id", created.TodoID)
	return created, nil
}

// ListForUser returns the user's items in creation order. Attachment URLs are
// rewritten to the current public or pre-signed form.
func (s *TodoService) ListForUser(ctx context.Context, userID string) ([]model.TodoItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachmentURLWorkers)
	for i := range items {
		if !items[i].HasAttachment() {
			continue
		}
		g.Go(func() error {
			url, err := s.attachmentURL(gctx, items[i].TodoID)
			if err != nil {
				return err
			}
			items[i].AttachmentURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []model.TodoItem{}
	}
	return items, nil
}

// ListAll returns every item in the store regardless of owner.
func (s *TodoService) ListAll(ctx context.Context) ([]model.TodoItem, error) {
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all todos: %w", err)
	}
	if items == nil {
		items = []model.TodoItem{}
	}
	return items, nil
}

func (s *TodoService) Update(ctx context.Context, userID, todoID string, input UpdateTodoInput) (model.TodoItem, error) {
	if strings.TrimSpace(input.Name) == "" {
		return model.TodoItem{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return model.TodoItem{}, err
	}

	if _, err := s.ownedItem(ctx, userID, todoID, "update"); err != nil {
		return model.TodoItem{}, err
	}

	updated, err := s.repo.Update(ctx, userID, todoID, model.TodoUpdate{
		Name:    input.Name,
		DueDate: input.DueDate,
		Done:    input.Done,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TodoItem{}, ErrNotFound
		}
		return model.TodoItem{}, fmt.Errorf("failed to update todo: %w", err)
	}

	return updated, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, todoID string) error {
	if _, err := s.ownedItem(ctx, userID, todoID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, todoID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	s.logger.InfoContext(ctx, "todo deleted", "user_id", userID, "todo_id", todoID)
	return nil
}

// CreateAttachmentUploadURL returns a pre-signed upload URL for the item's
// attachment and records the attachment's object URL on the item.
func (s *TodoService) CreateAttachmentUploadURL(ctx context.Context, userID, todoID string) (string, error) {
	if _, err := s.ownedItem(ctx, userID, todoID, "attach"); err != nil {
		return "", err
	}

	uploadURL, err := s.attachments.UploadURL(ctx, todoID)
	if err != nil {
		return "", fmt.Errorf("failed to create upload url: %w", err)
	}

	if err := s.repo.SetAttachmentURL(ctx, userID, todoID, s.attachments.ObjectURL(todoID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to record attachment url: %w", err)
	}

	return uploadURL, nil
}

// ownedItem loads todoID and checks that userID owns it.
func (s *TodoService) ownedItem(ctx context.Context, userID, todoID, action string) (model.TodoItem, error) {
	if userID == "" {
		return model.TodoItem{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if todoID == "" {
		return model.TodoItem{}, fmt.Errorf("%w: todo id is required", ErrInvalidInput)
	}

	// The keyed read is strongly consistent and a hit proves ownership.
	item, err := s.repo.Get(ctx, userID, todoID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.TodoItem{}, fmt.Errorf("failed to get todo for %s: %w", action, err)
	}

	// Otherwise the id index tells a missing item from someone else's.
	item, err = s.repo.FindByID(ctx, todoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.InfoContext(ctx, "todo not found", "todo_id", todoID, "action", action)
			return model.TodoItem{}, ErrNotFound
		}
		return model.TodoItem{}, fmt.Errorf("failed to get todo for %s: %w", action, err)
	}

	if !item.OwnedBy(userID) {
		s.logger.WarnContext(ctx, "todo access denied",
			"user_id", userID,
			"todo_id", todoID,
			"action", action,
		)
		return model.TodoItem{}, ErrForbidden
	}

	return item, nil
}

func (s *TodoService) attachmentURL(ctx context.Context, todoID string) (string, error) {
	if !s.privateAttachments {
		return s.attachments.ObjectURL(todoID), nil
	}
	url, err := s.attachments.DownloadURL(ctx, todoID)
	if err != nil {
		return "", fmt.Errorf("failed to create download url: %w", err)
	}
	return url, nil
}
