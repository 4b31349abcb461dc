package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/assign"
	"github.com/nhle/teamtasks/internal/credential"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/ui/feedview"
	"github.com/nhle/teamtasks/internal/ui/taskform"
)

const dateLayout = "2006-01-02"

func runInit(cfgPath string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "Your user id")
	email := fs.String("email", "", "Your email address")
	dbPath := fs.String("db-path", "", "Path to database file")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation("cli.init", "%v", err)
	}
	if *id == "" || *email == "" {
		return apperr.Validation("cli.init", "-id and -email are required")
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return apperr.Validation("cli.init", "%v", err)
	}
	cfg.User = model.UserConfig{ID: *id, Email: model.NormalizeEmail(*email)}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := model.SaveConfig(cfgPath, cfg); err != nil {
		return apperr.Dependency("cli.init", err)
	}
	fmt.Fprintf(out, "Wrote %s\n", cfgPath)
	return nil
}

func runCredential(args []string, in io.Reader, out io.Writer) error {
	const op = "cli.credential"
	if len(args) == 0 {
		return apperr.Validation(op, "usage: credential set-smtp|delete-smtp")
	}
	switch args[0] {
	case "set-smtp":
		fmt.Fprint(out, "SMTP password: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return apperr.Dependency(op, err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return apperr.Validation(op, "password must not be empty")
		}
		if err := credential.Set(credential.SMTPPasswordKey, password); err != nil {
			return apperr.Dependency(op, err)
		}
		fmt.Fprintln(out, "\nSaved SMTP password to the keyring.")
	case "delete-smtp":
		if err := credential.Delete(credential.SMTPPasswordKey); err != nil {
			return apperr.Dependency(op, err)
		}
		fmt.Fprintln(out, "Removed SMTP password from the keyring.")
	default:
		return apperr.Validation(op, "unknown credential command %q", args[0])
	}
	return nil
}

func (c *cli) runInvite(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("cli.invite", "usage: invite EMAIL")
	}
	conn, err := c.app.Team.Invite(ctx, c.user, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Invited %s. connection: %s\n", conn.RecipientEmail, conn.ID)
	return nil
}

func (c *cli) runRespond(ctx context.Context, args []string) error {
	const op = "cli.respond"
	if len(args) != 2 {
		return apperr.Validation(op, "usage: respond accept|reject CONNECTION_ID")
	}
	var accept bool
	switch args[0] {
	case "accept":
		accept = true
	case "reject":
	default:
		return apperr.Validation(op, "answer must be accept or reject, got %q", args[0])
	}

	conn, err := c.app.Team.Respond(ctx, args[1], c.user, accept)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Invitation from %s %s\n", conn.RequesterEmail, conn.Status)
	return nil
}

func (c *cli) runTeam(ctx context.Context) error {
	members, err := c.app.Team.ListTeamMembers(ctx, c.user)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		fmt.Fprintln(c.out, "No teammates yet.")
		return nil
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tSINCE")
	for _, m := range members {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Email, m.Since.Local().Format(dateLayout))
	}
	return w.Flush()
}

func (c *cli) runPending(ctx context.Context) error {
	incoming, err := c.app.Team.ListPendingIncoming(ctx, c.user)
	if err != nil {
		return err
	}
	outgoing, err := c.app.Team.ListPendingOutgoing(ctx, c.user)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DIRECTION\tCONNECTION\tEMAIL")
	for _, conn := range incoming {
		fmt.Fprintf(w, "from\t%s\t%s\n", conn.ID, conn.RequesterEmail)
	}
	for _, conn := range outgoing {
		fmt.Fprintf(w, "to\t%s\t%s\n", conn.ID, conn.RecipientEmail)
	}
	return w.Flush()
}

func (c *cli) runTask(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return apperr.Validation("cli.task", "usage: task new|update|done|delete|list")
	}
	switch args[0] {
	case "new":
		return c.runTaskNew(ctx, args[1:])
	case "update":
		return c.runTaskUpdate(ctx, args[1:])
	case "done":
		if len(args) != 2 {
			return apperr.Validation("cli.task", "usage: task done TASK_ID")
		}
		status := model.TaskStatusDone
		task, err := c.app.Coordinator.UpdateTask(ctx, args[1], c.user, model.TaskPatch{Status: &status})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Completed %q\n", task.Title)
		return nil
	case "delete":
		if len(args) != 2 {
			return apperr.Validation("cli.task", "usage: task delete TASK_ID")
		}
		if err := c.app.Coordinator.DeleteTask(ctx, args[1], c.user); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Deleted task %s\n", args[1])
		return nil
	case "list":
		return c.runTaskList(ctx, args[1:])
	}
	return apperr.Validation("cli.task", "unknown task command %q", args[0])
}

func (c *cli) runTaskNew(ctx context.Context, args []string) error {
	const op = "cli.task_new"

	fs := flag.NewFlagSet("task new", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	interactive := fs.Bool("i", false, "Fill the task in an interactive form")
	title := fs.String("title", "", "Task title")
	desc := fs.String("desc", "", "Task description")
	status := fs.String("status", "", "todo, in_progress or done")
	priority := fs.String("priority", "", "low, medium or high")
	due := fs.String("due", "", "Due date, YYYY-MM-DD")
	project := fs.String("project", "", "Project name or id")
	assignee := fs.String("assignee", "", "Teammate id or email")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation(op, "%v", err)
	}

	var payload model.TaskPayload
	if *interactive {
		members, err := c.app.Team.ListTeamMembers(ctx, c.user)
		if err != nil {
			return err
		}
		projects, err := c.app.Coordinator.ListProjects(ctx, c.user)
		if err != nil {
			return err
		}
		payload, err = taskform.New(members, projects).Run()
		if err != nil {
			return apperr.Validation(op, "%v", err)
		}
	} else {
		payload = model.TaskPayload{
			Title:       *title,
			Description: *desc,
			Status:      *status,
			Priority:    *priority,
		}
		var err error
		if payload.DueDate, err = parseDue(op, *due); err != nil {
			return err
		}
		if payload.ProjectID, err = c.resolveProject(ctx, *project); err != nil {
			return err
		}
		if payload.AssigneeID, err = c.resolveMember(ctx, op, *assignee); err != nil {
			return err
		}
	}

	task, err := c.app.Coordinator.CreateTask(ctx, c.user, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %q. task: %s\n", task.Title, task.ID)
	return nil
}

func (c *cli) runTaskUpdate(ctx context.Context, args []string) error {
	const op = "cli.task_update"
	if len(args) == 0 {
		return apperr.Validation(op, "usage: task update TASK_ID [flags]")
	}
	taskID := args[0]

	fs := flag.NewFlagSet("task update", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "New title")
	desc := fs.String("desc", "", "New description")
	status := fs.String("status", "", "todo, in_progress or done")
	priority := fs.String("priority", "", "low, medium or high")
	due := fs.String("due", "", "Due date, YYYY-MM-DD; empty clears it")
	project := fs.String("project", "", "Project name or id; empty moves to inbox")
	assignee := fs.String("assignee", "", "Teammate id or email; empty unassigns")
	if err := fs.Parse(args[1:]); err != nil {
		return apperr.Validation(op, "%v", err)
	}

	var patch model.TaskPatch
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "title":
			patch.Title = title
		case "desc":
			patch.Description = desc
		case "status":
			patch.Status = status
		case "priority":
			patch.Priority = priority
		case "due":
			if *due == "" {
				patch.ClearDueDate = true
				return
			}
			patch.DueDate, err = parseDue(op, *due)
		case "project":
			var id string
			id, err = c.resolveProject(ctx, *project)
			patch.ProjectID = &id
		case "assignee":
			var id string
			id, err = c.resolveMember(ctx, op, *assignee)
			patch.AssigneeID = &id
		}
	})
	if err != nil {
		return err
	}

	task, err := c.app.Coordinator.UpdateTask(ctx, taskID, c.user, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated %q (%s)\n", task.Title, task.Status)
	return nil
}

func (c *cli) runTaskList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("task list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var q model.TaskQuery
	fs.StringVar(&q.Search, "q", "", "Search title and description")
	fs.StringVar(&q.Status, "status", model.FilterAll, "Filter by status")
	fs.StringVar(&q.Priority, "priority", model.FilterAll, "Filter by priority")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation("cli.task_list", "%v", err)
	}

	tasks, err := c.app.Coordinator.ListTasks(ctx, c.user)
	if err != nil {
		return err
	}
	tasks = assign.FilterTasks(tasks, q)
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, "No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tOWNER\tASSIGNEE\tDUE")
	for _, t := range tasks {
		assignee := "-"
		if a, ok := t.Assignee(); ok {
			assignee = a.Email
		}
		dueStr := "-"
		if t.DueDate != nil {
			dueStr = t.DueDate.Format(dateLayout)
			if t.IsOverdue() {
				dueStr += " (overdue)"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.Status, t.Priority, t.OwnerEmail, assignee, dueStr)
	}
	return w.Flush()
}

func (c *cli) runProject(ctx context.Context, args []string) error {
	const op = "cli.project"
	if len(args) == 0 {
		return apperr.Validation(op, "usage: project new|rename|delete|list")
	}
	switch args[0] {
	case "new":
		fs := flag.NewFlagSet("project new", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		desc := fs.String("desc", "", "Project description")
		if err := fs.Parse(args[1:]); err != nil {
			return apperr.Validation(op, "%v", err)
		}
		if fs.NArg() != 1 {
			return apperr.Validation(op, "usage: project new [-desc TEXT] NAME")
		}
		p, err := c.app.Coordinator.CreateProject(ctx, c.user, fs.Arg(0), *desc)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Created project %q. project: %s\n", p.Name, p.ID)
	case "rename":
		if len(args) != 3 {
			return apperr.Validation(op, "usage: project rename PROJECT NAME")
		}
		id, err := c.resolveProject(ctx, args[1])
		if err != nil {
			return err
		}
		p, err := c.app.Coordinator.RenameProject(ctx, id, c.user, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Renamed project to %q\n", p.Name)
	case "delete":
		if len(args) != 2 {
			return apperr.Validation(op, "usage: project delete PROJECT")
		}
		id, err := c.resolveProject(ctx, args[1])
		if err != nil {
			return err
		}
		if err := c.app.Coordinator.DeleteProject(ctx, id, c.user); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Deleted project; its tasks moved to the inbox.")
	case "list":
		projects, err := c.app.Coordinator.ListProjects(ctx, c.user)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
		}
		return w.Flush()
	default:
		return apperr.Validation(op, "unknown project command %q", args[0])
	}
	return nil
}

func (c *cli) runNotifications(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	unreadOnly := fs.Bool("unread", false, "Only show unread notifications")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation("cli.notifications", "%v", err)
	}

	f := c.app.Feed(c.user)
	items, err := f.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d unread\n", f.UnreadCount())

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, n := range items {
		if *unreadOnly && n.Read {
			continue
		}
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			mark, n.ID, n.CreatedAt.Local().Format(time.DateTime), n.Type, n.Message)
	}
	return w.Flush()
}

func (c *cli) runRead(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("cli.read", "usage: read NOTIFICATION_ID")
	}
	f := c.app.Feed(c.user)
	if _, err := f.Load(ctx); err != nil {
		return err
	}
	if err := f.MarkRead(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d unread\n", f.UnreadCount())
	return nil
}

func (c *cli) runReadAll(ctx context.Context) error {
	f := c.app.Feed(c.user)
	if _, err := f.Load(ctx); err != nil {
		return err
	}
	if err := f.MarkAllRead(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d unread\n", f.UnreadCount())
	return nil
}

func (c *cli) runFeed(ctx context.Context) error {
	f := c.app.Feed(c.user)
	defer f.Stop()

	m := feedview.New(ctx, f, "Notifications for "+c.user.Email)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return apperr.Dependency("cli.feed", err)
	}
	return nil
}

// resolveProject maps a project name or id to an id. Empty stays empty.
func (c *cli) resolveProject(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	projects, err := c.app.Coordinator.ListProjects(ctx, c.user)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p.ID, nil
		}
	}
	return ref, nil
}

// resolveMember maps a teammate id or email to an id. Empty stays empty;
// the user's own id or email resolves to themselves.
func (c *cli) resolveMember(ctx context.Context, op, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == c.user.ID {
		return ref, nil
	}
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	if model.SameEmail(ref, c.user.Email) {
		return c.user.ID, nil
	}
	members, err := c.app.Team.ListTeamMembers(ctx, c.user)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if m.ID != "" && model.SameEmail(m.Email, ref) {
			return m.ID, nil
		}
	}
	return "", apperr.Validation(op, "%s is not on your team", ref)
}

func parseDue(op, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return nil, apperr.Validation(op, "due date must be YYYY-MM-DD")
	}
	return &t, nil
}
