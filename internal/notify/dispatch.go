// Package notify fans a workflow event out to its recipient: an in-app
// notification record, a push to any open feed and an outbound email.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/mailer"
	"github.com/nhle/teamtasks/internal/model"
)

// NotificationWriter persists notification records.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Delivery is one fan-out. Either part may be nil.
type Delivery struct {
	Notification *model.Notification
	Email        *mailer.Email
}

// Notifier performs fan-out for a primary mutation that already succeeded.
type Notifier interface {
	Deliver(ctx context.Context, op string, d Delivery)
}

// Dispatcher writes the record, publishes it, then sends the email, in that
// order. Every failure is logged and swallowed.
type Dispatcher struct {
	store     NotificationWriter
	publisher Publisher
	sender    mailer.Sender
	log       *zap.Logger
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. publisher and sender may be nil.
func NewDispatcher(
	store NotificationWriter,
	publisher Publisher,
	sender mailer.Sender,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: store, publisher: publisher, sender: sender, log: log}
}

// Deliver runs the fan-out for d on behalf of op.
func (d *Dispatcher) Deliver(ctx context.Context, op string, del Delivery) {
	if n := del.Notification; n != nil {
		d.writeNotification(ctx, op, n)
	}

	if e := del.Email; e != nil && d.sender != nil {
		if err := d.sender.SendEmail(ctx, *e); err != nil {
			d.log.Warn("sending email failed",
				zap.String("op", op),
				zap.String("to", e.To),
				zap.String("subject", e.Subject),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) writeNotification(ctx context.Context, op string, n *model.Notification) {
	if err := d.store.CreateNotification(ctx, n); err != nil {
		d.log.Warn("writing notification failed",
			zap.String("op", op),
			zap.String("user_id", n.UserID),
			zap.String("notification_type", n.Type),
			zap.Error(err),
		)
		// Nothing was stored, so there is nothing for a feed to pick up.
		return
	}

	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, *n); err != nil {
		d.log.Warn("publishing notification failed",
			zap.String("op", op),
			zap.String("user_id", n.UserID),
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}
