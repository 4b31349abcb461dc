package store

import (
	"context"
	"errors"

	"github.com/nhle/teamtasks/internal/model"
)

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict indicates a conditional update matched no row because the
	// record was no longer in the expected state.
	ErrConflict = errors.New("store: conflict")
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	OwnerID    *string
	AssigneeID *string
	InvolvedID *string // owner OR assignee
	ProjectID  *string // project UUID, "inbox" (NULL project_id), or nil (all)
	Status     *string
	Priority   *string
	Query      *string // search title + description
	SortBy     string  // "created_at", "updated_at", "due_date", "priority", "title", "status"
	SortDesc   bool
	Limit      int
	Offset     int
}

// ConnectionFilter selects connections. Involving matches the user as
// requester (by id) or recipient (by id or email).
type ConnectionFilter struct {
	RequesterID    *string
	RecipientEmail *string
	Involving      *model.Identity
	Status         *string
}

// NotificationFilter selects a user's notifications, newest first.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Type       *string
	Limit      int
}

// Store defines the persistence interface for the tasks, projects,
// user_connections and notifications collections.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)

	// === Projects ===

	CreateProject(ctx context.Context, project *model.Project) error
	UpdateProject(ctx context.Context, project *model.Project) error
	DeleteProject(ctx context.Context, id string) error
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	GetProjects(ctx context.Context, ownerID string) ([]model.Project, error)

	// === Connections ===

	CreateConnection(ctx context.Context, conn *model.Connection) error
	ResolveConnection(ctx context.Context, conn *model.Connection) error
	GetConnectionByID(ctx context.Context, id string) (*model.Connection, error)
	GetConnections(ctx context.Context, filter ConnectionFilter) ([]model.Connection, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}
