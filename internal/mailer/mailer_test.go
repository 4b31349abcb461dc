package mailer_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/teamtasks/internal/mailer"
)

func TestBuildTaskAssignedEmail(t *testing.T) {
	due := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	email := mailer.BuildTaskAssignedEmail("bob@x.com", mailer.TaskEmailData{
		SiteName:    "Team Tasks",
		ActorEmail:  "alice@x.com",
		Title:       "Write proposal",
		Description: `<b>Draft</b> first<script>alert(1)</script>`,
		Priority:    "high",
		Status:      "todo",
		DueDate:     &due,
	})

	if email.To != "bob@x.com" {
		t.Errorf("To = %q, want bob@x.com", email.To)
	}
	if email.Subject != "New task assigned: Write proposal" {
		t.Errorf("unexpected subject %q", email.Subject)
	}
	for _, want := range []string{"Write proposal", "high", "todo", "Mar 14, 2026", "Draft first"} {
		if !strings.Contains(email.Text, want) {
			t.Errorf("text body missing %q:\n%s", want, email.Text)
		}
	}
	if strings.Contains(email.Text, "<b>") {
		t.Errorf("text body should not contain markup:\n%s", email.Text)
	}
	if !strings.Contains(email.HTML, "<b>Draft</b>") {
		t.Errorf("html body should keep safe markup")
	}
	if strings.Contains(email.HTML, "<script>") {
		t.Errorf("html body must not contain script tags")
	}
}

func TestBuildTaskCompletedEmail(t *testing.T) {
	email := mailer.BuildTaskCompletedEmail("alice@x.com", mailer.TaskEmailData{
		ActorEmail: "bob@x.com",
		Title:      "Ship it",
		Priority:   "medium",
		Status:     "done",
	})
	if email.Subject != "Task completed: Ship it" {
		t.Errorf("unexpected subject %q", email.Subject)
	}
	if !strings.Contains(email.Text, "bob@x.com marked your task as done.") {
		t.Errorf("text body missing lead:\n%s", email.Text)
	}
	if strings.Contains(email.Text, "Due:") {
		t.Errorf("text body should omit due date when unset")
	}
}

func TestBuildInviteEmailEscapesHTML(t *testing.T) {
	email := mailer.BuildInviteEmail("bob@x.com", mailer.InviteEmailData{
		SiteName:       "Team Tasks",
		RequesterEmail: "<alice>@x.com",
	})
	if strings.Contains(email.HTML, "<alice>") {
		t.Errorf("requester email should be escaped in html body")
	}
	if !strings.Contains(email.Text, "<alice>@x.com invited you") {
		t.Errorf("unexpected text body:\n%s", email.Text)
	}
}

func TestComposeMultipartAlternative(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := mailer.Compose("Team Tasks <noreply@x.com>", mailer.Email{
		To:      "bob@x.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, now)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	defer mr.Close()

	subject, err := mr.Header.Subject()
	if err != nil || subject != "Hello" {
		t.Errorf("Subject = %q, %v", subject, err)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "bob@x.com" {
		t.Errorf("To = %v, %v", to, err)
	}

	bodies := map[string]string{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, _ := io.ReadAll(part.Body)
		bodies[ct] = string(b)
	}

	if bodies["text/plain"] != "plain body" {
		t.Errorf("text/plain = %q", bodies["text/plain"])
	}
	if bodies["text/html"] != "<p>html body</p>" {
		t.Errorf("text/html = %q", bodies["text/html"])
	}
}

func TestComposeRejectsBadAddress(t *testing.T) {
	_, err := mailer.Compose("noreply@x.com", mailer.Email{To: "not an address"}, time.Now())
	if err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}
