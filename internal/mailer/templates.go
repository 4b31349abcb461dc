package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Task descriptions may carry user-authored markup. The HTML body keeps
	// safe formatting; the text body drops all tags.
	htmlPolicy = bluemonday.UGCPolicy()
	textPolicy = bluemonday.StrictPolicy()
)

// InviteEmailData holds data for the connection invitation email.
type InviteEmailData struct {
	SiteName       string
	AppURL         string
	RequesterEmail string
}

// TaskEmailData holds data for task assignment and completion emails.
type TaskEmailData struct {
	SiteName    string
	AppURL      string
	ActorEmail  string
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     *time.Time
}

// BuildInviteEmail creates the email sent to an invited address.
func BuildInviteEmail(to string, data InviteEmailData) Email {
	var text bytes.Buffer
	text.WriteString(fmt.Sprintf("%s invited you to join their team on %s.\n\n",
		data.RequesterEmail, data.SiteName))
	if data.AppURL != "" {
		text.WriteString("Sign in to accept or decline:\n")
		text.WriteString(data.AppURL + "\n\n")
	}
	text.WriteString("If you were not expecting this invitation, you can ignore this email.\n")

	return Email{
		To:      to,
		Subject: fmt.Sprintf("%s invited you to their team on %s", data.RequesterEmail, data.SiteName),
		Text:    text.String(),
		HTML:    render(inviteHTMLTemplate, data),
	}
}

// BuildTaskAssignedEmail creates the email sent to a new assignee.
func BuildTaskAssignedEmail(to string, data TaskEmailData) Email {
	return Email{
		To:      to,
		Subject: fmt.Sprintf("New task assigned: %s", data.Title),
		Text:    buildTaskText(fmt.Sprintf("%s assigned you a task.", data.ActorEmail), data),
		HTML:    renderTask("You have a new task", fmt.Sprintf("%s assigned you a task.", data.ActorEmail), data),
	}
}

// BuildTaskCompletedEmail creates the email sent to a task owner when the
// assignee finishes the task.
func BuildTaskCompletedEmail(to string, data TaskEmailData) Email {
	return Email{
		To:      to,
		Subject: fmt.Sprintf("Task completed: %s", data.Title),
		Text:    buildTaskText(fmt.Sprintf("%s marked your task as done.", data.ActorEmail), data),
		HTML:    renderTask("Task completed", fmt.Sprintf("%s marked your task as done.", data.ActorEmail), data),
	}
}

func buildTaskText(lead string, data TaskEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(lead + "\n\n")
	buf.WriteString(fmt.Sprintf("Title:    %s\n", data.Title))
	if desc := strings.TrimSpace(textPolicy.Sanitize(data.Description)); desc != "" {
		buf.WriteString(fmt.Sprintf("Details:  %s\n", desc))
	}
	buf.WriteString(fmt.Sprintf("Priority: %s\n", data.Priority))
	buf.WriteString(fmt.Sprintf("Status:   %s\n", data.Status))
	if data.DueDate != nil {
		buf.WriteString(fmt.Sprintf("Due:      %s\n", data.DueDate.Format("Jan 2, 2006")))
	}
	if data.AppURL != "" {
		buf.WriteString("\nOpen " + data.SiteName + ": " + data.AppURL + "\n")
	}
	return buf.String()
}

type taskHTMLData struct {
	TaskEmailData
	Heading     string
	Lead        string
	SafeDetails template.HTML
	Due         string
}

func renderTask(heading, lead string, data TaskEmailData) string {
	d := taskHTMLData{
		TaskEmailData: data,
		Heading:       heading,
		Lead:          lead,
		SafeDetails:   template.HTML(htmlPolicy.Sanitize(data.Description)),
	}
	if data.DueDate != nil {
		d.Due = data.DueDate.Format("Jan 2, 2006")
	}
	return render(taskHTMLTemplate, d)
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

var inviteHTMLTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Team invitation</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #2b6cb0;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                <strong>{{.RequesterEmail}}</strong> invited you to join their team.
              </p>
              {{if .AppURL}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.AppURL}}" style="display: inline-block; padding: 14px 32px; background-color: #2b6cb0; color: #ffffff; text-decoration: none; font-size: 16px; border-radius: 6px;">
                      Review invitation
                    </a>
                  </td>
                </tr>
              </table>
              {{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you were not expecting this invitation, you can ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

var taskHTMLTemplate = template.Must(template.New("task").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 560px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 16px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #2b6cb0;">{{.Heading}}</h1>
              <p style="margin: 8px 0 0; font-size: 14px; color: #6b7280;">{{.Lead}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px;">
              <h2 style="margin: 0 0 12px; font-size: 18px; color: #1f2937;">{{.Title}}</h2>
              {{if .SafeDetails}}<div style="margin: 0 0 16px; font-size: 14px; color: #374151; line-height: 1.5;">{{.SafeDetails}}</div>{{end}}
              <table role="presentation" cellspacing="0" cellpadding="4" style="font-size: 14px; color: #374151;">
                <tr><td style="color: #6b7280;">Priority</td><td>{{.Priority}}</td></tr>
                <tr><td style="color: #6b7280;">Status</td><td>{{.Status}}</td></tr>
                {{if .Due}}<tr><td style="color: #6b7280;">Due</td><td>{{.Due}}</td></tr>{{end}}
              </table>
              {{if .AppURL}}
              <p style="margin: 24px 0 0;">
                <a href="{{.AppURL}}" style="display: inline-block; padding: 12px 28px; background-color: #2b6cb0; color: #ffffff; text-decoration: none; font-size: 15px; border-radius: 6px;">Open {{.SiteName}}</a>
              </p>
              {{end}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))
