package taskform

import (
	"testing"

	"github.com/nhle/teamtasks/internal/model"
)

func TestPayloadFromBindings(t *testing.T) {
	members := []model.TeamMember{
		{ID: "u2", Email: "bob@x.com"},
		{ID: "u3", Email: "carol@x.com"},
	}
	f := New(members, nil)
	f.fb.title = "  Ship it "
	f.fb.priority = model.PriorityHigh
	f.fb.dueDate = "2026-05-01"
	f.fb.assigneeID = "u3"

	p, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if p.Title != "Ship it" || p.Priority != model.PriorityHigh {
		t.Errorf("payload = %+v", p)
	}
	if p.AssigneeID != "u3" || p.AssigneeEmail != "carol@x.com" {
		t.Errorf("assignee = %s/%s, want u3/carol@x.com", p.AssigneeID, p.AssigneeEmail)
	}
	if p.DueDate == nil || p.DueDate.Format(dateLayout) != "2026-05-01" {
		t.Errorf("due = %v", p.DueDate)
	}
}

func TestPayloadIgnoresUnknownAssignee(t *testing.T) {
	f := New(nil, nil)
	f.fb.title = "x"
	f.fb.assigneeID = "stranger"

	p, err := f.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if p.AssigneeID != "" {
		t.Errorf("assignee = %q, want none", p.AssigneeID)
	}
}

func TestValidators(t *testing.T) {
	if err := validateRequired("Title")("  "); err == nil {
		t.Error("blank title accepted")
	}
	if err := validateOptionalDate(""); err != nil {
		t.Errorf("empty date rejected: %v", err)
	}
	if err := validateOptionalDate("05/01/2026"); err == nil {
		t.Error("bad date accepted")
	}
}
