package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/model"
)

const (
	asAlice = ""
	asBob   = "user-bob:bob@x.com"
)

type harness struct {
	t   *testing.T
	cfg string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{t: t, cfg: filepath.Join(dir, "config.yaml")}
	out := h.mustRun(asAlice, "init", "-id", "user-alice", "-email", "Alice@X.com",
		"-db-path", filepath.Join(dir, "teamtasks.db"))
	if !strings.Contains(out, "Wrote") {
		t.Fatalf("init output = %q", out)
	}
	return h
}

func (h *harness) run(as string, args ...string) (string, error) {
	var out bytes.Buffer
	err := run(context.Background(), h.cfg, as, args, strings.NewReader(""), &out)
	return out.String(), err
}

func (h *harness) mustRun(as string, args ...string) string {
	h.t.Helper()
	out, err := h.run(as, args...)
	if err != nil {
		h.t.Fatalf("%v: %v (%s)", args, err, apperr.UserMessage(err))
	}
	return out
}

// field returns the value printed after "name: " on a line of out.
func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if _, v, ok := strings.Cut(line, name+": "); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q line in %q", name, out)
	return ""
}

func TestInitWritesUser(t *testing.T) {
	h := newHarness(t)
	cfg, err := model.LoadConfig(h.cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.User.ID != "user-alice" || cfg.User.Email != "alice@x.com" {
		t.Errorf("user = %+v", cfg.User)
	}
}

func TestTeamAndTaskWorkflow(t *testing.T) {
	h := newHarness(t)

	connID := field(t, h.mustRun(asAlice, "invite", "bob@x.com"), "connection")

	if out := h.mustRun(asBob, "pending"); !strings.Contains(out, "alice@x.com") {
		t.Errorf("bob pending = %q, want alice's invitation", out)
	}
	if out := h.mustRun(asBob, "respond", "accept", connID); !strings.Contains(out, "accepted") {
		t.Errorf("respond output = %q", out)
	}
	if out := h.mustRun(asAlice, "team"); !strings.Contains(out, "bob@x.com") {
		t.Errorf("alice team = %q, want bob", out)
	}

	taskID := field(t, h.mustRun(asAlice, "task", "new", "-title", "Report",
		"-priority", "high", "-assignee", "bob@x.com"), "task")

	out := h.mustRun(asBob, "notifications")
	if !strings.HasPrefix(out, "1 unread") || !strings.Contains(out, model.NotificationTaskAssigned) {
		t.Errorf("bob notifications = %q", out)
	}
	if out := h.mustRun(asBob, "task", "list", "-priority", "high"); !strings.Contains(out, "Report") {
		t.Errorf("bob task list = %q", out)
	}

	h.mustRun(asBob, "task", "done", taskID)

	out = h.mustRun(asAlice, "notifications", "-unread")
	if !strings.HasPrefix(out, "2 unread") ||
		!strings.Contains(out, model.NotificationTaskCompleted) ||
		!strings.Contains(out, model.NotificationConnectionAccepted) {
		t.Errorf("alice notifications = %q", out)
	}
	if out := h.mustRun(asAlice, "read-all"); !strings.HasPrefix(out, "0 unread") {
		t.Errorf("read-all output = %q", out)
	}
}

func TestAssigneeMayOnlyChangeStatus(t *testing.T) {
	h := newHarness(t)
	connID := field(t, h.mustRun(asAlice, "invite", "bob@x.com"), "connection")
	h.mustRun(asBob, "respond", "accept", connID)
	taskID := field(t, h.mustRun(asAlice, "task", "new", "-title", "T", "-assignee", "user-bob"), "task")

	_, err := h.run(asBob, "task", "update", taskID, "-title", "Mine now")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want Forbidden", err)
	}
	if out := h.mustRun(asBob, "task", "update", taskID, "-status", "in_progress"); !strings.Contains(out, "in_progress") {
		t.Errorf("update output = %q", out)
	}
}

func TestProjects(t *testing.T) {
	h := newHarness(t)
	h.mustRun(asAlice, "project", "new", "-desc", "Q3 work", "Launch")
	h.mustRun(asAlice, "task", "new", "-title", "Plan", "-project", "launch")

	if out := h.mustRun(asAlice, "project", "list"); !strings.Contains(out, "Launch") {
		t.Errorf("project list = %q", out)
	}
	h.mustRun(asAlice, "project", "rename", "Launch", "Liftoff")
	h.mustRun(asAlice, "project", "delete", "Liftoff")
	if out := h.mustRun(asAlice, "task", "list"); !strings.Contains(out, "Plan") {
		t.Errorf("task should survive project deletion, got %q", out)
	}
}

func TestErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		as   string
		args []string
		kind error
	}{
		{"unknown command", asAlice, []string{"frobnicate"}, apperr.ErrValidation},
		{"self invite", asAlice, []string{"invite", "alice@x.com"}, apperr.ErrValidation},
		{"bad answer", asBob, []string{"respond", "maybe", "c1"}, apperr.ErrValidation},
		{"missing connection", asBob, []string{"respond", "accept", "nope"}, apperr.ErrNotFound},
		{"assignee not on team", asAlice, []string{"task", "new", "-title", "T", "-assignee", "carol@x.com"}, apperr.ErrValidation},
		{"bad due date", asAlice, []string{"task", "new", "-title", "T", "-due", "tomorrow"}, apperr.ErrValidation},
		{"bad --as", "bob", []string{"team"}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.as, tt.args...)
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
			if msg := apperr.UserMessage(err); msg == "" {
				t.Error("empty user message")
			}
		})
	}
}

func TestDuplicateInvite(t *testing.T) {
	h := newHarness(t)
	h.mustRun(asAlice, "invite", "bob@x.com")
	_, err := h.run(asAlice, "invite", "BOB@x.com")
	if !errors.Is(err, apperr.ErrDuplicateInvite) {
		t.Errorf("err = %v, want DuplicateInvite", err)
	}
}
