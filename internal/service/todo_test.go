package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jaekwang-park/todo-dynamo/internal/model"
	"github.com/jaekwang-park/todo-dynamo/internal/repository"
	"github.com/jaekwang-park/todo-dynamo/internal/service"
)

// mockTodoRepo implements repository.TodoRepository for testing
type mockTodoRepo struct {
	getAllFn           func(ctx context.Context) ([]model.TodoItem, error)
	listByUserFn       func(ctx context.Context, userID string) ([]model.TodoItem, error)
	getFn              func(ctx context.Context, userID, todoID string) (model.TodoItem, error)
	findByIDFn         func(ctx context.Context, todoID string) (model.TodoItem, error)
	createFn           func(ctx context.Context, item model.TodoItem) (model.TodoItem, error)
	updateFn           func(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error)
	setAttachmentURLFn func(ctx context.Context, userID, todoID, url string) error
	deleteFn           func(ctx context.Context, userID, todoID string) error
}

func (m *mockTodoRepo) GetAll(ctx context.Context) ([]model.TodoItem, error) {
	return m.getAllFn(ctx)
}
func (m *mockTodoRepo) ListByUser(ctx context.Context, userID string) ([]model.TodoItem, error) {
	return m.listByUserFn(ctx, userID)
}
// Get misses unless getFn is set, so ownership falls through to FindByID.
func (m *mockTodoRepo) Get(ctx context.Context, userID, todoID string) (model.TodoItem, error) {
	if m.getFn == nil {
		return model.TodoItem{}, repository.ErrNotFound
	}
	return m.getFn(ctx, userID, todoID)
}
func (m *mockTodoRepo) FindByID(ctx context.Context, todoID string) (model.TodoItem, error) {
	return m.findByIDFn(ctx, todoID)
}
func (m *mockTodoRepo) Create(ctx context.Context, item model.TodoItem) (model.TodoItem, error) {
	return m.createFn(ctx, item)
}
func (m *mockTodoRepo) Update(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error) {
	return m.updateFn(ctx, userID, todoID, update)
}
func (m *mockTodoRepo) SetAttachmentURL(ctx context.Context, userID, todoID, url string) error {
	return m.setAttachmentURLFn(ctx, userID, todoID, url)
}
func (m *mockTodoRepo) Delete(ctx context.Context, userID, todoID string) error {
	return m.deleteFn(ctx, userID, todoID)
}

// stubIssuer implements service.AttachmentIssuer
type stubIssuer struct {
	uploadErr   error
	downloadErr error
}

func (s *stubIssuer) ObjectURL(todoID string) string {
	return "https://todo-bucket.s3.amazonaws.com/" + todoID
}
func (s *stubIssuer) UploadURL(ctx context.Context, todoID string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return "https://signed.example/put/" + todoID, nil
}
func (s *stubIssuer) DownloadURL(ctx context.Context, todoID string) (string, error) {
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	return "https://signed.example/get/" + todoID, nil
}

var now = time.Date(2025, 1, 1, 9, 30, 0, 123456789, time.FixedZone("KST", 9*60*60))

func sampleTodo() model.TodoItem {
	return model.TodoItem{
		UserID:    "user-1",
		TodoID:    "todo-1",
		CreatedAt: "2025-01-01T00:30:00.123Z",
		Name:      "Buy groceries",
		DueDate:   "2025-01-02",
	}
}

func newService(repo *mockTodoRepo, issuer *stubIssuer, opts ...service.Option) *service.TodoService {
	base := []service.Option{
		service.WithClock(func() time.Time { return now }),
		service.WithIDGenerator(func() string { return "todo-new" }),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return service.NewTodoService(repo, issuer, append(base, opts...)...)
}

func ownedBy(userID string) func(ctx context.Context, todoID string) (model.TodoItem, error) {
	return func(ctx context.Context, todoID string) (model.TodoItem, error) {
		item := sampleTodo()
		item.TodoID = todoID
		item.UserID = userID
		return item, nil
	}
}

func missing(ctx context.Context, todoID string) (model.TodoItem, error) {
	return model.TodoItem{}, repository.ErrNotFound
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		input   service.CreateTodoInput
		repoErr error
		wantErr string
	}{
		{
			name:   "success",
			userID: "user-1",
			input:  service.CreateTodoInput{Name: "Buy groceries", DueDate: "2025-01-02"},
		},
		{
			name:   "rfc3339 due date",
			userID: "user-1",
			input:  service.CreateTodoInput{Name: "Buy groceries", DueDate: "2025-01-02T10:00:00Z"},
		},
		{
			name:   "no due date",
			userID: "user-1",
			input:  service.CreateTodoInput{Name: "Buy groceries"},
		},
		{
			name:    "empty name",
			userID:  "user-1",
			input:   service.CreateTodoInput{Name: "  "},
			wantErr: "invalid input",
		},
		{
			name:    "bad due date",
			userID:  "user-1",
			input:   service.CreateTodoInput{Name: "Buy groceries", DueDate: "tomorrow"},
			wantErr: "invalid dueDate",
		},
		{
			name:    "missing user",
			userID:  "",
			input:   service.CreateTodoInput{Name: "Buy groceries"},
			wantErr: "user id is required",
		},
		{
			name:    "repo error",
			userID:  "user-1",
			input:   service.CreateTodoInput{Name: "Buy groceries"},
			repoErr: fmt.Errorf("dynamodb error"),
			wantErr: "failed to create todo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stored model.TodoItem
			repo := &mockTodoRepo{
				createFn: func(ctx context.Context, item model.TodoItem) (model.TodoItem, error) {
					if tt.repoErr != nil {
						return model.TodoItem{}, tt.repoErr
					}
					stored = item
					return item, nil
				},
			}
			svc := newService(repo, &stubIssuer{})
			got, err := svc.Create(context.Background(), tt.userID, tt.input)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != stored {
				t.Errorf("returned item %+v differs from stored item %+v", got, stored)
			}
			if got.TodoID != "todo-new" {
				t.Errorf("expected todoId=todo-new, got %q", got.TodoID)
			}
			if got.UserID != tt.userID {
				t.Errorf("expected userId=%q, got %q", tt.userID, got.UserID)
			}
			if got.CreatedAt != "2025-01-01T00:30:00.123Z" {
				t.Errorf("expected UTC createdAt with millis, got %q", got.CreatedAt)
			}
			if got.Done {
				t.Error("expected new todo to be not done")
			}
			if got.AttachmentURL != "" {
				t.Errorf("expected no attachment, got %q", got.AttachmentURL)
			}
			if got.Name != tt.input.Name || got.DueDate != tt.input.DueDate {
				t.Errorf("expected name/dueDate from input, got %q/%q", got.Name, got.DueDate)
			}
		})
	}
}

func TestCreate_DefaultIDIsUUID(t *testing.T) {
	repo := &mockTodoRepo{
		createFn: func(ctx context.Context, item model.TodoItem) (model.TodoItem, error) {
			return item, nil
		},
	}
	svc := service.NewTodoService(repo, &stubIssuer{}, service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	a, err := svc.Create(context.Background(), "user-1", service.CreateTodoInput{Name: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Create(context.Background(), "user-1", service.CreateTodoInput{Name: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.TodoID) != 36 || strings.Count(a.TodoID, "-") != 4 {
		t.Errorf("expected UUID todoId, got %q", a.TodoID)
	}
	if a.TodoID == b.TodoID {
		t.Errorf("expected distinct ids, got %q twice", a.TodoID)
	}
}

func TestListForUser(t *testing.T) {
	withAttachment := sampleTodo()
	withAttachment.TodoID = "todo-2"
	withAttachment.AttachmentURL = "https://old-bucket.s3.amazonaws.com/todo-2"

	tests := []struct {
		name     string
		private  bool
		issuer   *stubIssuer
		repoErr  error
		wantURLs []string
		wantErr  string
	}{
		{
			name:     "public bucket",
			issuer:   &stubIssuer{},
			wantURLs: []string{"", "https://todo-bucket.s3.amazonaws.com/todo-2"},
		},
		{
			name:     "private bucket",
			private:  true,
			issuer:   &stubIssuer{},
			wantURLs: []string{"", "https://signed.example/get/todo-2"},
		},
		{
			name:    "presign error",
			private: true,
			issuer:  &stubIssuer{downloadErr: errors.New("no credentials")},
			wantErr: "failed to create download url",
		},
		{
			name:    "repo error",
			issuer:  &stubIssuer{},
			repoErr: errors.New("dynamodb error"),
			wantErr: "failed to list todos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockTodoRepo{
				listByUserFn: func(ctx context.Context, userID string) ([]model.TodoItem, error) {
					if userID != "user-1" {
						t.Errorf("expected userID=user-1, got %q", userID)
					}
					if tt.repoErr != nil {
						return nil, tt.repoErr
					}
					return []model.TodoItem{sampleTodo(), withAttachment}, nil
				},
			}
			svc := newService(repo, tt.issuer, service.WithPrivateAttachments(tt.private))

			got, err := svc.ListForUser(context.Background(), "user-1")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantURLs) {
				t.Fatalf("expected %d items, got %d", len(tt.wantURLs), len(got))
			}
			for i, want := range tt.wantURLs {
				if got[i].AttachmentURL != want {
					t.Errorf("item %d: expected attachmentUrl=%q, got %q", i, want, got[i].AttachmentURL)
				}
			}
		})
	}
}

func TestListForUser_Empty(t *testing.T) {
	repo := &mockTodoRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]model.TodoItem, error) {
			return nil, nil
		},
	}
	svc := newService(repo, &stubIssuer{})

	got, err := svc.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	if _, err := svc.ListForUser(context.Background(), ""); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty user, got %v", err)
	}
}

func TestListAll(t *testing.T) {
	repo := &mockTodoRepo{
		getAllFn: func(ctx context.Context) ([]model.TodoItem, error) {
			other := sampleTodo()
			other.UserID = "user-2"
			return []model.TodoItem{sampleTodo(), other}, nil
		},
	}
	svc := newService(repo, &stubIssuer{})

	got, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}

	failing := &mockTodoRepo{
		getAllFn: func(ctx context.Context) ([]model.TodoItem, error) {
			return nil, errors.New("scan failed")
		},
	}
	if _, err := newService(failing, &stubIssuer{}).ListAll(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name     string
		input    service.UpdateTodoInput
		findFn   func(ctx context.Context, todoID string) (model.TodoItem, error)
		updateFn func(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error)
		wantErr  error
	}{
		{
			name:   "success",
			input:  service.UpdateTodoInput{Name: "Buy milk", DueDate: "2025-02-01", Done: true},
			findFn: ownedBy("user-1"),
		},
		{
			name:    "not found",
			input:   service.UpdateTodoInput{Name: "Buy milk"},
			findFn:  missing,
			wantErr: service.ErrNotFound,
		},
		{
			name:    "owned by another user",
			input:   service.UpdateTodoInput{Name: "Buy milk"},
			findFn:  ownedBy("user-2"),
			wantErr: service.ErrForbidden,
		},
		{
			name:    "empty name",
			input:   service.UpdateTodoInput{Name: ""},
			findFn:  ownedBy("user-1"),
			wantErr: service.ErrInvalidInput,
		},
		{
			name:    "bad due date",
			input:   service.UpdateTodoInput{Name: "Buy milk", DueDate: "02/01/2025"},
			findFn:  ownedBy("user-1"),
			wantErr: service.ErrInvalidInput,
		},
		{
			name:   "deleted between check and update",
			input:  service.UpdateTodoInput{Name: "Buy milk"},
			findFn: ownedBy("user-1"),
			updateFn: func(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error) {
				return model.TodoItem{}, repository.ErrNotFound
			},
			wantErr: service.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updateCalled := false
			repo := &mockTodoRepo{
				findByIDFn: tt.findFn,
				updateFn: func(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error) {
					updateCalled = true
					if tt.updateFn != nil {
						return tt.updateFn(ctx, userID, todoID, update)
					}
					if userID != "user-1" || todoID != "todo-1" {
						t.Errorf("unexpected key %s/%s", userID, todoID)
					}
					item := sampleTodo()
					item.Name = update.Name
					item.DueDate = update.DueDate
					item.Done = update.Done
					return item, nil
				},
			}
			svc := newService(repo, &stubIssuer{})

			got, err := svc.Update(context.Background(), "user-1", "todo-1", tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.updateFn == nil && updateCalled {
					t.Error("update must not be called when the check fails")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "Buy milk" || !got.Done || got.DueDate != "2025-02-01" {
				t.Errorf("unexpected updated item: %+v", got)
			}
		})
	}
}

func TestUpdate_FreshItemBeforeIndexCatchesUp(t *testing.T) {
	findCalled := false
	repo := &mockTodoRepo{
		getFn: func(ctx context.Context, userID, todoID string) (model.TodoItem, error) {
			if userID != "user-1" || todoID != "todo-1" {
				return model.TodoItem{}, repository.ErrNotFound
			}
			return sampleTodo(), nil
		},
		findByIDFn: func(ctx context.Context, todoID string) (model.TodoItem, error) {
			findCalled = true
			return model.TodoItem{}, repository.ErrNotFound
		},
		updateFn: func(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error) {
			item := sampleTodo()
			item.Name = update.Name
			item.Done = update.Done
			return item, nil
		},
	}
	svc := newService(repo, &stubIssuer{})

	got, err := svc.Update(context.Background(), "user-1", "todo-1", service.UpdateTodoInput{Name: "Buy milk", Done: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Buy milk" || !got.Done {
		t.Errorf("unexpected updated item: %+v", got)
	}
	if findCalled {
		t.Error("id index must not be consulted when the keyed read hits")
	}
}

func TestDelete_KeyedReadError(t *testing.T) {
	repo := &mockTodoRepo{
		getFn: func(ctx context.Context, userID, todoID string) (model.TodoItem, error) {
			return model.TodoItem{}, errors.New("dynamodb error")
		},
		findByIDFn: func(ctx context.Context, todoID string) (model.TodoItem, error) {
			t.Error("id index must not be consulted after a store error")
			return model.TodoItem{}, nil
		},
	}
	svc := newService(repo, &stubIssuer{})

	err := svc.Delete(context.Background(), "user-1", "todo-1")
	if err == nil || errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		findFn   func(ctx context.Context, todoID string) (model.TodoItem, error)
		deleteFn func(ctx context.Context, userID, todoID string) error
		wantErr  error
	}{
		{
			name:   "success",
			findFn: ownedBy("user-1"),
		},
		{
			name:    "not found",
			findFn:  missing,
			wantErr: service.ErrNotFound,
		},
		{
			name:    "owned by another user",
			findFn:  ownedBy("user-2"),
			wantErr: service.ErrForbidden,
		},
		{
			name:   "deleted concurrently",
			findFn: ownedBy("user-1"),
			deleteFn: func(ctx context.Context, userID, todoID string) error {
				return fmt.Errorf("wrapped: %w", repository.ErrNotFound)
			},
			wantErr: service.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleteCalled := false
			repo := &mockTodoRepo{
				findByIDFn: tt.findFn,
				deleteFn: func(ctx context.Context, userID, todoID string) error {
					deleteCalled = true
					if tt.deleteFn != nil {
						return tt.deleteFn(ctx, userID, todoID)
					}
					return nil
				},
			}
			svc := newService(repo, &stubIssuer{})

			err := svc.Delete(context.Background(), "user-1", "todo-1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.deleteFn == nil && deleteCalled {
					t.Error("delete must not be called when the check fails")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !deleteCalled {
				t.Error("expected delete to be called")
			}
		})
	}
}

func TestDelete_FindError(t *testing.T) {
	repo := &mockTodoRepo{
		findByIDFn: func(ctx context.Context, todoID string) (model.TodoItem, error) {
			return model.TodoItem{}, errors.New("dynamodb error")
		},
	}
	svc := newService(repo, &stubIssuer{})

	err := svc.Delete(context.Background(), "user-1", "todo-1")
	if err == nil || errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to get todo for delete") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDelete_EmptyIDs(t *testing.T) {
	svc := newService(&mockTodoRepo{}, &stubIssuer{})

	if err := svc.Delete(context.Background(), "", "todo-1"); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty user, got %v", err)
	}
	if err := svc.Delete(context.Background(), "user-1", ""); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty todo, got %v", err)
	}
}

func TestCreateAttachmentUploadURL(t *testing.T) {
	tests := []struct {
		name      string
		findFn    func(ctx context.Context, todoID string) (model.TodoItem, error)
		issuer    *stubIssuer
		setErr    error
		wantURL   string
		wantSaved string
		wantErr   error
		wantMsg   string
	}{
		{
			name:      "success",
			findFn:    ownedBy("user-1"),
			issuer:    &stubIssuer{},
			wantURL:   "https://signed.example/put/todo-1",
			wantSaved: "https://todo-bucket.s3.amazonaws.com/todo-1",
		},
		{
			name:    "not found",
			findFn:  missing,
			issuer:  &stubIssuer{},
			wantErr: service.ErrNotFound,
		},
		{
			name:    "owned by another user",
			findFn:  ownedBy("user-2"),
			issuer:  &stubIssuer{},
			wantErr: service.ErrForbidden,
		},
		{
			name:    "presign error",
			findFn:  ownedBy("user-1"),
			issuer:  &stubIssuer{uploadErr: errors.New("no credentials")},
			wantMsg: "failed to create upload url",
		},
		{
			name:    "record error",
			findFn:  ownedBy("user-1"),
			issuer:  &stubIssuer{},
			setErr:  errors.New("dynamodb error"),
			wantMsg: "failed to record attachment url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var saved string
			repo := &mockTodoRepo{
				findByIDFn: tt.findFn,
				setAttachmentURLFn: func(ctx context.Context, userID, todoID, url string) error {
					if tt.setErr != nil {
						return tt.setErr
					}
					saved = url
					return nil
				},
			}
			svc := newService(repo, tt.issuer)

			got, err := svc.CreateAttachmentUploadURL(context.Background(), "user-1", "todo-1")

			if tt.wantErr != nil || tt.wantMsg != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
				}
				if saved != "" {
					t.Errorf("attachment url must not be recorded on failure, got %q", saved)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantURL {
				t.Errorf("expected upload url %q, got %q", tt.wantURL, got)
			}
			if saved != tt.wantSaved {
				t.Errorf("expected recorded url %q, got %q", tt.wantSaved, saved)
			}
		})
	}
}
