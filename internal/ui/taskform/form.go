// Package taskform is the interactive form for creating a task and picking
// an assignee among the owner's teammates.
package taskform

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/teamtasks/internal/model"
)

// dateLayout is the due date input format.
const dateLayout = "2006-01-02"

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid.
type formBindings struct {
	title       string
	description string
	priority    string
	dueDate     string
	projectID   string
	assigneeID  string
}

// Form collects a model.TaskPayload.
type Form struct {
	fb       *formBindings
	members  []model.TeamMember
	projects []model.Project
	form     *huh.Form
}

// New builds a form offering members as assignees and projects as targets.
func New(members []model.TeamMember, projects []model.Project) *Form {
	f := &Form{
		fb:       &formBindings{priority: model.PriorityMedium},
		members:  members,
		projects: projects,
	}
	f.form = huh.NewForm(huh.NewGroup(f.fields()...)).WithWidth(72)
	return f
}

// Run shows the form in the terminal and returns the collected payload.
func (f *Form) Run() (model.TaskPayload, error) {
	if err := f.form.Run(); err != nil {
		return model.TaskPayload{}, err
	}
	return f.Payload()
}

// Payload converts the current field values into a task payload.
func (f *Form) Payload() (model.TaskPayload, error) {
	p := model.TaskPayload{
		Title:       strings.TrimSpace(f.fb.title),
		Description: strings.TrimSpace(f.fb.description),
		Priority:    f.fb.priority,
		ProjectID:   f.fb.projectID,
	}
	if s := strings.TrimSpace(f.fb.dueDate); s != "" {
		due, err := time.Parse(dateLayout, s)
		if err != nil {
			return model.TaskPayload{}, fmt.Errorf("parsing due date %q: %w", s, err)
		}
		p.DueDate = &due
	}
	if f.fb.assigneeID != "" {
		for _, m := range f.members {
			if m.ID == f.fb.assigneeID {
				p.AssigneeID = m.ID
				p.AssigneeEmail = m.Email
				break
			}
		}
	}
	return p, nil
}

func (f *Form) fields() []huh.Field {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs to be done?").
			Value(&f.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&f.fb.description),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", model.PriorityHigh),
				huh.NewOption("Medium", model.PriorityMedium),
				huh.NewOption("Low", model.PriorityLow),
			).
			Value(&f.fb.priority),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&f.fb.dueDate).
			Validate(validateOptionalDate),
	}

	if len(f.projects) > 0 {
		opts := []huh.Option[string]{huh.NewOption("None (Inbox)", "")}
		for _, p := range f.projects {
			opts = append(opts, huh.NewOption(p.Name, p.ID))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Project").
			Options(opts...).
			Value(&f.fb.projectID))
	}

	// Only accepted teammates are offered.
	if len(f.members) > 0 {
		opts := []huh.Option[string]{huh.NewOption("Nobody", "")}
		for _, m := range f.members {
			opts = append(opts, huh.NewOption(m.Email, m.ID))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Assignee").
			Options(opts...).
			Value(&f.fb.assigneeID))
	}
	return fields
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
