package assign

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/store"
)

// CreateProject creates a project owned by owner. Names are unique per owner.
func (c *Coordinator) CreateProject(
	ctx context.Context,
	owner model.Identity,
	name, description string,
) (*model.Project, error) {
	const op = "assign.create_project"

	name = strings.TrimSpace(name)
	if owner.ID == "" {
		return nil, apperr.Validation(op, "owner id is required")
	}
	if name == "" {
		return nil, apperr.Validation(op, "project name is required")
	}

	existing, err := c.store.GetProjects(ctx, owner.ID)
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, name) {
			return nil, apperr.Validation(op, "project %q already exists", p.Name)
		}
	}

	project := &model.Project{OwnerID: owner.ID, Name: name, Description: description}
	if err := c.store.CreateProject(ctx, project); err != nil {
		return nil, apperr.Dependency(op, err)
	}
	c.log.Info("project created", zap.String("project_id", project.ID), zap.String("owner_id", owner.ID))
	return project, nil
}

// RenameProject changes a project's name.
func (c *Coordinator) RenameProject(
	ctx context.Context,
	projectID string,
	owner model.Identity,
	name string,
) (*model.Project, error) {
	const op = "assign.rename_project"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(op, "project name is required")
	}
	project, err := c.ownedProject(ctx, op, projectID, owner)
	if err != nil {
		return nil, err
	}
	project.Name = name
	if err := c.store.UpdateProject(ctx, project); err != nil {
		return nil, apperr.Dependency(op, err)
	}
	return project, nil
}

// ListProjects returns owner's projects ordered by name.
func (c *Coordinator) ListProjects(ctx context.Context, owner model.Identity) ([]model.Project, error) {
	projects, err := c.store.GetProjects(ctx, owner.ID)
	if err != nil {
		return nil, apperr.Dependency("assign.list_projects", err)
	}
	return projects, nil
}

// DeleteProject removes a project. Its tasks stay, without a project.
func (c *Coordinator) DeleteProject(ctx context.Context, projectID string, owner model.Identity) error {
	const op = "assign.delete_project"

	if _, err := c.ownedProject(ctx, op, projectID, owner); err != nil {
		return err
	}
	if err := c.store.DeleteProject(ctx, projectID); err != nil {
		return apperr.Dependency(op, err)
	}
	c.log.Info("project deleted", zap.String("project_id", projectID), zap.String("owner_id", owner.ID))
	return nil
}

func (c *Coordinator) ownedProject(
	ctx context.Context,
	op, projectID string,
	owner model.Identity,
) (*model.Project, error) {
	project, err := c.store.GetProjectByID(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(op, "project", projectID)
	}
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}
	if project.OwnerID != owner.ID {
		return nil, apperr.Forbidden(op, "project %s belongs to another user", project.Name)
	}
	return project, nil
}
