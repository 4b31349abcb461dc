package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/teamtasks/internal/model"
)

const taskColumns = `id, title, description, status, priority,
	due_date, project_id, owner_id, owner_email,
	assignee_id, assignee_email,
	created_at, completed_at, updated_at`

// CreateTask inserts a new task. Generates a UUID if ID is empty and stamps
// the created/updated times on the passed task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.Status == model.TaskStatusDone && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.ProjectID, task.OwnerID, task.OwnerEmail,
		task.AssigneeID, task.AssigneeEmail,
		task.CreatedAt, task.CompletedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// UpdateTask writes every mutable field of an existing task. The owner is
// never rewritten. Last write wins; there is no version check.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}

	now := time.Now().UTC()
	task.UpdatedAt = now

	// Auto-manage completed_at based on status.
	if task.Status == model.TaskStatusDone && task.CompletedAt == nil {
		task.CompletedAt = &now
	} else if task.Status != model.TaskStatusDone {
		task.CompletedAt = nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?,
			due_date = ?, project_id = ?,
			assignee_id = ?, assignee_email = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.ProjectID,
		task.AssigneeID, task.AssigneeEmail,
		task.CompletedAt, task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by ID. Notifications referencing it are kept.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTaskByID retrieves a single task by ID.
func (s *SQLiteStore) GetTaskByID(
	ctx context.Context,
	id string,
) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return &task, nil
}

// GetTasks retrieves tasks matching the filter.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	filter TaskFilter,
) ([]model.Task, error) {
	query, args := buildTaskQuery(filter)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(filter TaskFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.OwnerID != nil {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.InvolvedID != nil {
		conditions = append(conditions, "(owner_id = ? OR assignee_id = ?)")
		args = append(args, *filter.InvolvedID, *filter.InvolvedID)
	}
	if filter.ProjectID != nil {
		if *filter.ProjectID == "inbox" {
			conditions = append(conditions, "project_id IS NULL")
		} else {
			conditions = append(conditions, "project_id = ?")
			args = append(args, *filter.ProjectID)
		}
	}
	if filter.Status != nil && *filter.Status != model.FilterAll {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil && *filter.Priority != model.FilterAll {
		conditions = append(conditions, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Sort.
	sortBy := "created_at"
	if filter.SortBy != "" {
		allowed := map[string]string{
			"created_at": "created_at",
			"updated_at": "updated_at",
			"due_date":   "due_date",
			"title":      "title",
			"status":     "status",
			"priority":   "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
		}
		if col, ok := allowed[filter.SortBy]; ok {
			sortBy = col
		}
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, rowid %s", sortBy, direction, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query, args
}

// scanTask scans a task row from a sqlx.Row or sqlx.Rows.
func scanTask(row rowScanner) (model.Task, error) {
	var (
		task          model.Task
		dueDate       *time.Time
		completedAt   *time.Time
		projectID     *string
		assigneeID    *string
		assigneeEmail *string
	)

	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&dueDate, &projectID, &task.OwnerID, &task.OwnerEmail,
		&assigneeID, &assigneeEmail,
		&task.CreatedAt, &completedAt, &task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.DueDate = dueDate
	task.CompletedAt = completedAt
	task.ProjectID = projectID
	task.AssigneeID = assigneeID
	task.AssigneeEmail = assigneeEmail

	return task, nil
}
