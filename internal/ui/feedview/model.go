// Package feedview is the terminal view of the notification feed.
package feedview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/feed"
	"github.com/nhle/teamtasks/internal/keys"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/theme"
	"github.com/nhle/teamtasks/internal/ui"
)

// actionTimeout bounds a mark-read round trip.
const actionTimeout = 15 * time.Second

// actionDoneMsg reports the outcome of a mark-read action.
type actionDoneMsg struct {
	ok  string
	err error
}

// Model is the Bubble Tea model for the feed view. The feed is started on
// Init and stopped when the view quits.
type Model struct {
	feed   *feed.Feed
	ctx    context.Context
	title  string
	keys   *keys.KeyMap
	help   help.Model
	layout ui.Layout

	items      []model.Notification
	unread     int
	cursor     int
	unreadOnly bool
	status     string
	errMsg     string
}

// New creates a feed view titled title.
func New(ctx context.Context, f *feed.Feed, title string) Model {
	return Model{
		feed:   f,
		ctx:    ctx,
		title:  title,
		keys:   keys.DefaultKeyMap(),
		help:   help.New(),
		layout: ui.NewLayout(80, 24),
	}
}

// Init starts background refresh and listens for updates.
func (m Model) Init() tea.Cmd {
	m.feed.Start(m.ctx)
	return m.feed.WaitForUpdate()
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return m, nil

	case feed.UpdateMsg:
		m.apply(feed.Snapshot(msg))
		return m, m.feed.WaitForUpdate()

	case actionDoneMsg:
		if msg.err != nil {
			m.errMsg = apperr.UserMessage(msg.err)
			m.status = ""
		} else {
			m.errMsg = ""
			m.status = msg.ok
		}
		m.apply(m.feed.Snapshot())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visible()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.feed.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(visible)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Top):
		m.cursor = 0

	case key.Matches(msg, m.keys.MarkRead):
		if m.cursor < len(visible) {
			return m, m.markRead(visible[m.cursor].ID)
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.markAllRead()

	case key.Matches(msg, m.keys.ToggleUnread):
		m.unreadOnly = !m.unreadOnly
		m.clampCursor()

	case key.Matches(msg, m.keys.Refresh):
		m.status = "Refreshing..."
		m.feed.Refresh()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) markRead(id string) tea.Cmd {
	f, parent := m.feed, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionDoneMsg{ok: "Marked as read", err: f.MarkRead(ctx, id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	f, parent := m.feed, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionDoneMsg{ok: "All notifications marked as read", err: f.MarkAllRead(ctx)}
	}
}

func (m *Model) apply(snap feed.Snapshot) {
	m.items = snap.Items
	m.unread = snap.Unread
	if snap.Err != nil {
		m.errMsg = apperr.UserMessage(snap.Err)
	} else if m.status == "Refreshing..." {
		m.status = ""
	}
	m.clampCursor()
}

func (m Model) visible() []model.Notification {
	if !m.unreadOnly {
		return m.items
	}
	var out []model.Notification
	for _, n := range m.items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

func (m *Model) clampCursor() {
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the feed.
func (m Model) View() string {
	badge := "all read"
	if m.unread > 0 {
		badge = theme.BadgeStyle.Render(fmt.Sprintf("%d unread", m.unread))
	}
	header := m.layout.RenderHeader(m.title, badge)

	var b strings.Builder
	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(theme.HelpStyle.Render("  No notifications yet."))
		b.WriteString("\n")
	}

	height := m.layout.ContentHeight() - 2
	start := 0
	if m.cursor >= height && height > 0 {
		start = m.cursor - height + 1
	}
	for i := start; i < len(visible) && i-start < height; i++ {
		b.WriteString(renderItem(visible[i], i == m.cursor))
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render("  " + m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	status := m.status
	if status == "" && m.unreadOnly {
		status = "Showing unread only"
	}
	return m.layout.RenderWithFrame(header, b.String(), m.layout.RenderStatusBar(status))
}

func renderItem(n model.Notification, selected bool) string {
	marker := "●"
	if n.Read {
		marker = " "
	}
	line := fmt.Sprintf("%s %s %s  %s  %s",
		marker,
		theme.NotificationTypeStyle(n.Type).Render(typeLabel(n.Type)),
		n.Title,
		n.Message,
		relativeTime(n.CreatedAt),
	)
	switch {
	case selected:
		return theme.SelectedItemStyle.Render(line)
	case n.Read:
		return theme.ReadItemStyle.Render(line)
	default:
		return theme.ListItemStyle.Render(line)
	}
}

func typeLabel(t string) string {
	switch t {
	case model.NotificationTaskAssigned:
		return "ASSIGNED"
	case model.NotificationTaskCompleted:
		return "DONE"
	case model.NotificationConnectionAccepted:
		return "TEAM"
	}
	return strings.ToUpper(t)
}

// relativeTime formats t relative to now, e.g. "5m ago".
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("Jan 02")
}
