package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/teamtasks/internal/model"
)

const projectColumns = "id, owner_id, name, description, color, created_at, updated_at"

// CreateProject inserts a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *model.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.OwnerID, project.Name, project.Description,
		project.Color, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// UpdateProject updates an existing project's name, description and color.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project *model.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("project name must not be empty")
	}
	project.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			name = ?, description = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		project.Name, project.Description, project.Color, project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", project.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	return nil
}

// DeleteProject removes a project. Associated tasks get project_id set to NULL.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetProjectByID retrieves a single project by ID.
func (s *SQLiteStore) GetProjectByID(
	ctx context.Context,
	id string,
) (*model.Project, error) {
	var project model.Project
	err := s.db.QueryRowxContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id).Scan(
		&project.ID, &project.OwnerID, &project.Name, &project.Description,
		&project.Color, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return &project, nil
}

// GetProjects retrieves all projects owned by ownerID, ordered by name.
func (s *SQLiteStore) GetProjects(
	ctx context.Context,
	ownerID string,
) ([]model.Project, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE owner_id = ? ORDER BY name",
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		err := rows.Scan(
			&p.ID, &p.OwnerID, &p.Name, &p.Description,
			&p.Color, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
