// Package assign creates and updates tasks and fans out notifications when
// an assignment or a completion crosses from one user to another.
package assign

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/mailer"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/internal/store"
)

// Directory resolves a user's accepted teammates. *team.Manager satisfies it.
type Directory interface {
	Member(ctx context.Context, user model.Identity, memberID string) (model.TeamMember, bool, error)
}

// Policy holds the assignment policy switches.
type Policy struct {
	// EnforceTeamAssignee rejects assignees that are not accepted teammates
	// of the owner. When false, an unknown assignee keeps the email given by
	// the caller.
	EnforceTeamAssignee bool
}

// Options configures a Coordinator.
type Options struct {
	Policy   Policy
	SiteName string
	AppURL   string
	Logger   *zap.Logger
}

// Coordinator is the assignment coordinator.
type Coordinator struct {
	store     store.Store
	directory Directory
	notifier  notify.Notifier
	policy    Policy
	siteName  string
	appURL    string
	log       *zap.Logger
}

// NewCoordinator creates a Coordinator. directory may be nil, which disables
// teammate lookups.
func NewCoordinator(
	s store.Store,
	directory Directory,
	notifier notify.Notifier,
	opts Options,
) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:     s,
		directory: directory,
		notifier:  notifier,
		policy:    opts.Policy,
		siteName:  opts.SiteName,
		appURL:    opts.AppURL,
		log:       log.Named("assign"),
	}
}

// CreateTask persists a new task owned by owner. When the task is assigned
// to someone else, the assignee gets a task_assigned notification and an
// email once the task is stored.
func (c *Coordinator) CreateTask(
	ctx context.Context,
	owner model.Identity,
	payload model.TaskPayload,
) (*model.Task, error) {
	const op = "assign.create_task"

	if owner.ID == "" {
		return nil, apperr.Validation(op, "owner id is required")
	}
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return nil, apperr.Validation(op, "title is required")
	}

	task := &model.Task{
		Title:       title,
		Description: payload.Description,
		Status:      payload.Status,
		Priority:    payload.Priority,
		DueDate:     payload.DueDate,
		OwnerID:     owner.ID,
		OwnerEmail:  model.NormalizeEmail(owner.Email),
	}
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := validateEnums(op, task.Status, task.Priority); err != nil {
		return nil, err
	}

	if payload.ProjectID != "" {
		if err := c.checkProject(ctx, op, owner, payload.ProjectID); err != nil {
			return nil, err
		}
		id := payload.ProjectID
		task.ProjectID = &id
	}

	if payload.AssigneeID != "" {
		assignee, err := c.resolveAssignee(ctx, op, owner, payload.AssigneeID, payload.AssigneeEmail)
		if err != nil {
			return nil, err
		}
		setAssignee(task, assignee)
	}

	if err := c.store.CreateTask(ctx, task); err != nil {
		return nil, apperr.Dependency(op, err)
	}

	c.log.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("owner_id", owner.ID),
		zap.Stringp("assignee_id", task.AssigneeID),
	)

	if a, ok := task.Assignee(); ok && a.ID != owner.ID {
		c.notifyAssigned(ctx, op, task, owner, a)
	}
	return task, nil
}

// UpdateTask applies patch on behalf of actor. The owner may change any
// field; the assignee may only change the status. Moving the task to done
// notifies the owner when someone else did it, and reassigning it notifies
// the new assignee. Concurrent updates are last-write-wins.
func (c *Coordinator) UpdateTask(
	ctx context.Context,
	taskID string,
	actor model.Identity,
	patch model.TaskPatch,
) (*model.Task, error) {
	const op = "assign.update_task"

	task, err := c.loadTask(ctx, op, taskID)
	if err != nil {
		return nil, err
	}

	isOwner := actor.ID != "" && actor.ID == task.OwnerID
	current, hasAssignee := task.Assignee()
	isAssignee := hasAssignee && actor.ID != "" && actor.ID == current.ID

	switch {
	case !isOwner && !isAssignee:
		return nil, apperr.Forbidden(op, "you are not the owner or assignee of this task")
	case !isOwner && !patch.OnlyStatus():
		return nil, apperr.Forbidden(op, "only the task owner can change fields other than status")
	}

	prevStatus := task.Status
	prevAssignee := current.ID

	if err := c.applyPatch(ctx, op, task, patch); err != nil {
		return nil, err
	}

	err = c.store.UpdateTask(ctx, task)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(op, "task", taskID)
	}
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}

	c.log.Info("task updated",
		zap.String("task_id", task.ID),
		zap.String("actor_id", actor.ID),
		zap.String("status", task.Status),
	)

	if prevStatus != model.TaskStatusDone && task.Status == model.TaskStatusDone && !isOwner {
		c.notifyCompleted(ctx, op, task, actor)
	}
	if a, ok := task.Assignee(); ok && a.ID != prevAssignee && a.ID != task.OwnerID {
		c.notifyAssigned(ctx, op, task, actor, a)
	}
	return task, nil
}

// DeleteTask removes a task. Only the owner may delete it; notifications
// that reference it are kept.
func (c *Coordinator) DeleteTask(ctx context.Context, taskID string, owner model.Identity) error {
	const op = "assign.delete_task"

	task, err := c.loadTask(ctx, op, taskID)
	if err != nil {
		return err
	}
	if owner.ID == "" || task.OwnerID != owner.ID {
		return apperr.Forbidden(op, "only the task owner can delete it")
	}

	err = c.store.DeleteTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "task", taskID)
	}
	if err != nil {
		return apperr.Dependency(op, err)
	}

	c.log.Info("task deleted", zap.String("task_id", taskID), zap.String("owner_id", owner.ID))
	return nil
}

// GetTask returns a task visible to user as owner or assignee.
func (c *Coordinator) GetTask(ctx context.Context, taskID string, user model.Identity) (*model.Task, error) {
	const op = "assign.get_task"

	task, err := c.loadTask(ctx, op, taskID)
	if err != nil {
		return nil, err
	}
	a, _ := task.Assignee()
	if user.ID == "" || (task.OwnerID != user.ID && a.ID != user.ID) {
		return nil, apperr.Forbidden(op, "you are not the owner or assignee of this task")
	}
	return task, nil
}

// ListTasks returns the tasks user owns or is assigned, most recently
// updated first.
func (c *Coordinator) ListTasks(ctx context.Context, user model.Identity) ([]model.Task, error) {
	if user.ID == "" {
		return nil, apperr.Validation("assign.list_tasks", "user id is required")
	}
	tasks, err := c.store.GetTasks(ctx, store.TaskFilter{
		InvolvedID: &user.ID,
		SortBy:     "updated_at",
		SortDesc:   true,
	})
	if err != nil {
		return nil, apperr.Dependency("assign.list_tasks", err)
	}
	return tasks, nil
}

func (c *Coordinator) loadTask(ctx context.Context, op, taskID string) (*model.Task, error) {
	if taskID == "" {
		return nil, apperr.Validation(op, "task id is required")
	}
	task, err := c.store.GetTaskByID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(op, "task", taskID)
	}
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}
	return task, nil
}

func (c *Coordinator) applyPatch(ctx context.Context, op string, task *model.Task, p model.TaskPatch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return apperr.Validation(op, "title is required")
		}
		task.Title = title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if err := validateEnums(op, task.Status, task.Priority); err != nil {
		return err
	}

	switch {
	case p.ClearDueDate:
		task.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		task.DueDate = &due
	}

	owner := task.Owner()
	if p.ProjectID != nil {
		if *p.ProjectID == "" {
			task.ProjectID = nil
		} else {
			if err := c.checkProject(ctx, op, owner, *p.ProjectID); err != nil {
				return err
			}
			id := *p.ProjectID
			task.ProjectID = &id
		}
	}

	if p.AssigneeID != nil {
		if *p.AssigneeID == "" {
			task.AssigneeID = nil
			task.AssigneeEmail = nil
			return nil
		}
		email := ""
		if task.AssigneeEmail != nil && task.AssigneeID != nil && *task.AssigneeID == *p.AssigneeID {
			email = *task.AssigneeEmail
		}
		assignee, err := c.resolveAssignee(ctx, op, owner, *p.AssigneeID, email)
		if err != nil {
			return err
		}
		setAssignee(task, assignee)
	}
	return nil
}

// resolveAssignee returns the identity to store for an assignee, taking the
// email from the owner's team directory when possible.
func (c *Coordinator) resolveAssignee(
	ctx context.Context,
	op string,
	owner model.Identity,
	assigneeID, fallbackEmail string,
) (model.Identity, error) {
	if assigneeID == owner.ID {
		return owner, nil
	}
	if c.directory != nil {
		member, ok, err := c.directory.Member(ctx, owner, assigneeID)
		if err != nil {
			return model.Identity{}, apperr.Dependency(op, err)
		}
		if ok {
			return model.Identity{ID: member.ID, Email: member.Email}, nil
		}
		if c.policy.EnforceTeamAssignee {
			return model.Identity{}, apperr.Validation(op, "assignee %s is not on your team", assigneeID)
		}
	}
	return model.Identity{ID: assigneeID, Email: model.NormalizeEmail(fallbackEmail)}, nil
}

func (c *Coordinator) checkProject(ctx context.Context, op string, owner model.Identity, projectID string) error {
	project, err := c.store.GetProjectByID(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "project", projectID)
	}
	if err != nil {
		return apperr.Dependency(op, err)
	}
	if project.OwnerID != owner.ID {
		return apperr.Forbidden(op, "project %s belongs to another user", project.Name)
	}
	return nil
}

func validateEnums(op, status, priority string) error {
	if !model.ValidTaskStatus(status) {
		return apperr.Validation(op, "invalid status %q", status)
	}
	if !model.ValidPriority(priority) {
		return apperr.Validation(op, "invalid priority %q", priority)
	}
	return nil
}

func setAssignee(task *model.Task, a model.Identity) {
	id := a.ID
	task.AssigneeID = &id
	task.AssigneeEmail = nil
	if a.Email != "" {
		email := a.Email
		task.AssigneeEmail = &email
	}
}

func (c *Coordinator) emailData(task *model.Task, actor model.Identity) mailer.TaskEmailData {
	return mailer.TaskEmailData{
		SiteName:    c.siteName,
		AppURL:      c.appURL,
		ActorEmail:  actor.Email,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      task.Status,
		DueDate:     task.DueDate,
	}
}

func (c *Coordinator) notifyAssigned(ctx context.Context, op string, task *model.Task, actor, assignee model.Identity) {
	d := notify.Delivery{
		Notification: &model.Notification{
			UserID:  assignee.ID,
			Type:    model.NotificationTaskAssigned,
			Title:   "New task assigned",
			Message: actor.Email + " assigned you \"" + task.Title + "\".",
			Payload: map[string]string{
				"task_id":  task.ID,
				"actor_id": actor.ID,
			},
		},
	}
	if assignee.Email != "" {
		email := mailer.BuildTaskAssignedEmail(assignee.Email, c.emailData(task, actor))
		d.Email = &email
	}
	c.notifier.Deliver(ctx, op, d)
}

func (c *Coordinator) notifyCompleted(ctx context.Context, op string, task *model.Task, actor model.Identity) {
	owner := task.Owner()
	d := notify.Delivery{
		Notification: &model.Notification{
			UserID:  owner.ID,
			Type:    model.NotificationTaskCompleted,
			Title:   "Task completed",
			Message: actor.Email + " completed \"" + task.Title + "\".",
			Payload: map[string]string{
				"task_id":  task.ID,
				"actor_id": actor.ID,
			},
		},
	}
	if owner.Email != "" {
		email := mailer.BuildTaskCompletedEmail(owner.Email, c.emailData(task, actor))
		d.Email = &email
	}
	c.notifier.Deliver(ctx, op, d)
}
