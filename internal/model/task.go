package model

import "time"

// Task status constants. Every directed transition between them is allowed.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task priority constants.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// FilterAll is the wildcard value for status and priority filters.
const FilterAll = "all"

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work owned by its creator and optionally assigned to a
// teammate. AssigneeEmail is a cached display field, not a source of truth.
type Task struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	Status        string     `json:"status" db:"status"`
	Priority      string     `json:"priority" db:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty" db:"due_date"`
	ProjectID     *string    `json:"project_id,omitempty" db:"project_id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	OwnerEmail    string     `json:"owner_email" db:"owner_email"`
	AssigneeID    *string    `json:"assignee_id,omitempty" db:"assignee_id"`
	AssigneeEmail *string    `json:"assignee_email,omitempty" db:"assignee_email"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Owner returns the creator's identity.
func (t Task) Owner() Identity {
	return Identity{ID: t.OwnerID, Email: t.OwnerEmail}
}

// Assignee returns the assignee identity and whether one is set.
func (t Task) Assignee() (Identity, bool) {
	if t.AssigneeID == nil || *t.AssigneeID == "" {
		return Identity{}, false
	}
	email := ""
	if t.AssigneeEmail != nil {
		email = *t.AssigneeEmail
	}
	return Identity{ID: *t.AssigneeID, Email: email}, true
}

// IsOverdue reports whether the due date has passed on an unfinished task.
func (t Task) IsOverdue() bool {
	return t.DueDate != nil && t.DueDate.Before(time.Now()) && t.Status != TaskStatusDone
}

// TaskPayload carries the fields accepted when creating a task.
type TaskPayload struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ProjectID     string     `json:"project_id"`
	AssigneeID    string     `json:"assignee_id"`
	AssigneeEmail string     `json:"assignee_email"`
}

// TaskPatch is a partial update. Nil fields are left unchanged; an empty
// AssigneeID clears the assignment and ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       *string    `json:"status,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
	ProjectID    *string    `json:"project_id,omitempty"`
	AssigneeID   *string    `json:"assignee_id,omitempty"`
}

// OnlyStatus reports whether the patch touches nothing but the status.
func (p TaskPatch) OnlyStatus() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.ProjectID == nil &&
		p.AssigneeID == nil
}

// TaskQuery is the in-memory filter applied to a loaded task list.
type TaskQuery struct {
	Search   string
	Status   string
	Priority string
}
