package feedview_test

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamtasks/internal/feed"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/ui/feedview"
	"github.com/nhle/teamtasks/tests/testutil"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newLoadedView(t *testing.T, count int) (feedview.Model, *feed.Feed) {
	t.Helper()
	s := testutil.NewTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < count; i++ {
		n := &model.Notification{
			UserID:    testutil.Bob.ID,
			Type:      model.NotificationTaskAssigned,
			Title:     "Task " + string(rune('A'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateNotification(context.Background(), n); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}

	f := feed.New(s, testutil.Bob, feed.Options{})
	if _, err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := feedview.New(context.Background(), f, "Notifications")
	updated, _ := m.Update(feed.UpdateMsg(f.Snapshot()))
	return updated.(feedview.Model), f
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m feedview.Model, cmd tea.Cmd) feedview.Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	updated, _ := m.Update(cmd())
	return updated.(feedview.Model)
}

func TestViewShowsUnreadBadge(t *testing.T) {
	m, _ := newLoadedView(t, 3)
	view := m.View()
	if !strings.Contains(view, "3 unread") {
		t.Errorf("view missing unread badge:\n%s", view)
	}
	if !strings.Contains(view, "Task C") {
		t.Errorf("view missing newest notification:\n%s", view)
	}
}

func TestMarkReadFromView(t *testing.T) {
	m, f := newLoadedView(t, 3)

	updated, _ := m.Update(keyMsg("j"))
	m = updated.(feedview.Model)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, updated.(feedview.Model), cmd)

	if f.UnreadCount() != 2 {
		t.Fatalf("UnreadCount = %d, want 2", f.UnreadCount())
	}
	// The second newest was selected.
	for _, n := range f.Items() {
		if n.Title == "Task B" && !n.Read {
			t.Error("Task B still unread")
		}
	}
	if !strings.Contains(m.View(), "2 unread") {
		t.Error("badge not updated after mark read")
	}
}

func TestMarkAllReadFromView(t *testing.T) {
	m, f := newLoadedView(t, 3)

	updated, cmd := m.Update(keyMsg("a"))
	m = run(t, updated.(feedview.Model), cmd)

	if f.UnreadCount() != 0 {
		t.Errorf("UnreadCount = %d, want 0", f.UnreadCount())
	}
	if !strings.Contains(m.View(), "all read") {
		t.Error("view does not show all read")
	}
}

func TestQuitStopsFeed(t *testing.T) {
	m, f := newLoadedView(t, 1)
	f.Start(context.Background())

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if f.Running() {
		t.Error("feed still running after quit")
	}
}

func TestEmptyFeed(t *testing.T) {
	m, _ := newLoadedView(t, 0)
	if !strings.Contains(m.View(), "No notifications yet.") {
		t.Error("empty state not rendered")
	}
	// Enter on an empty list does nothing.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("unexpected command on empty list")
	}
}
