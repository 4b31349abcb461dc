package testutil

import (
	"context"
	"sync"

	"github.com/nhle/teamtasks/internal/mailer"
)

// RecordingSender is a mailer.Sender that keeps every email it is asked to
// send. If Err is set, the email is still recorded and Err is returned.
type RecordingSender struct {
	mu   sync.Mutex
	sent []mailer.Email
	Err  error
}

// SendEmail records email.
func (r *RecordingSender) SendEmail(_ context.Context, email mailer.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, email)
	return r.Err
}

// Sent returns a copy of the recorded emails.
func (r *RecordingSender) Sent() []mailer.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Email(nil), r.sent...)
}

// SentTo returns the recorded emails addressed to to.
func (r *RecordingSender) SentTo(to string) []mailer.Email {
	var out []mailer.Email
	for _, e := range r.Sent() {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets every recorded email.
func (r *RecordingSender) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
