package app

import (
	"context"
	"testing"

	"github.com/nhle/teamtasks/internal/mailer"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/tests/testutil"
)

func testConfig() *model.AppConfig {
	return &model.AppConfig{
		SiteName: "Team Tasks",
		Database: model.DatabaseConfig{Path: ":memory:"},
		Feed:     model.FeedConfig{PollIntervalSec: 30, Limit: 50},
		Policy:   model.PolicyConfig{EnforceTeamAssignee: true},
		Log:      model.LogConfig{Level: "info"},
	}
}

func TestNewDefaultsToInProcessDelivery(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Broker.(*notify.Hub); !ok {
		t.Errorf("broker = %T, want *notify.Hub", a.Broker)
	}
	if _, ok := a.Sender.(mailer.LogSender); !ok {
		t.Errorf("sender = %T, want mailer.LogSender", a.Sender)
	}
}

func TestWiredWorkflow(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	conn, err := a.Team.Invite(ctx, testutil.Alice, testutil.Bob.Email)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := a.Team.Respond(ctx, conn.ID, testutil.Bob, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := a.Coordinator.CreateTask(ctx, testutil.Alice, model.TaskPayload{
		Title:      "T",
		AssigneeID: testutil.Bob.ID,
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	f := a.Feed(testutil.Bob)
	items, err := f.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 1 || items[0].Type != model.NotificationTaskAssigned {
		t.Errorf("bob feed = %+v, want one task_assigned", items)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(model.LogConfig{Level: "debug", Development: true}); err != nil {
		t.Errorf("NewLogger: %v", err)
	}
	if _, err := NewLogger(model.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
