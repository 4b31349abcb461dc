package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// ErrInjected is returned by FlakyStore for the operations it is told to fail.
var ErrInjected = errors.New("injected store failure")

// FlakyStore wraps a Store and fails selected operations.
type FlakyStore struct {
	store.Store

	FailCreateTask         bool
	FailUpdateTask         bool
	FailCreateConnection   bool
	FailCreateNotification bool
	FailGetNotifications   bool

	// FailMarkRead lists notification ids whose MarkNotificationRead fails.
	FailMarkRead map[string]bool
}

// CreateTask fails when FailCreateTask is set.
func (f *FlakyStore) CreateTask(ctx context.Context, task *model.Task) error {
	if f.FailCreateTask {
		return ErrInjected
	}
	return f.Store.CreateTask(ctx, task)
}

// UpdateTask fails when FailUpdateTask is set.
func (f *FlakyStore) UpdateTask(ctx context.Context, task *model.Task) error {
	if f.FailUpdateTask {
		return ErrInjected
	}
	return f.Store.UpdateTask(ctx, task)
}

// CreateConnection fails when FailCreateConnection is set.
func (f *FlakyStore) CreateConnection(ctx context.Context, conn *model.Connection) error {
	if f.FailCreateConnection {
		return ErrInjected
	}
	return f.Store.CreateConnection(ctx, conn)
}

// CreateNotification fails when FailCreateNotification is set.
func (f *FlakyStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if f.FailCreateNotification {
		return ErrInjected
	}
	return f.Store.CreateNotification(ctx, n)
}

// GetNotifications fails when FailGetNotifications is set.
func (f *FlakyStore) GetNotifications(
	ctx context.Context,
	filter store.NotificationFilter,
) ([]model.Notification, error) {
	if f.FailGetNotifications {
		return nil, ErrInjected
	}
	return f.Store.GetNotifications(ctx, filter)
}

// MarkNotificationRead fails for ids listed in FailMarkRead.
func (f *FlakyStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if f.FailMarkRead[id] {
		return ErrInjected
	}
	return f.Store.MarkNotificationRead(ctx, userID, id)
}
