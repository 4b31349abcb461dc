// Package team manages connection requests between users and derives each
// user's list of accepted teammates from them.
package team

import (
	"context"
	"errors"
	"net/mail"

	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/mailer"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/internal/store"
)

// Policy holds the invitation policy switches.
type Policy struct {
	// AllowReinviteAfterReject permits a new invite to an address whose
	// earlier invite from the same requester was rejected.
	AllowReinviteAfterReject bool
}

// Options configures a Manager.
type Options struct {
	Policy   Policy
	SiteName string
	AppURL   string
	Logger   *zap.Logger
}

// Manager is the connection manager.
type Manager struct {
	store    store.Store
	notifier notify.Notifier
	policy   Policy
	siteName string
	appURL   string
	log      *zap.Logger
}

// NewManager creates a Manager.
func NewManager(s store.Store, notifier notify.Notifier, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    s,
		notifier: notifier,
		policy:   opts.Policy,
		siteName: opts.SiteName,
		appURL:   opts.AppURL,
		log:      log.Named("team"),
	}
}

// Invite creates a pending connection from requester to recipientEmail and
// sends the invitation email. A failed email does not undo the invite.
func (m *Manager) Invite(
	ctx context.Context,
	requester model.Identity,
	recipientEmail string,
) (*model.Connection, error) {
	const op = "team.invite"

	if model.NormalizeEmail(recipientEmail) == "" {
		return nil, apperr.Validation(op, "recipient email is required")
	}
	addr, err := mail.ParseAddress(recipientEmail)
	if err != nil {
		return nil, apperr.Validation(op, "%q is not a valid email address", recipientEmail)
	}
	email := model.NormalizeEmail(addr.Address)
	if requester.ID == "" {
		return nil, apperr.Validation(op, "requester id is required")
	}
	if model.SameEmail(requester.Email, email) {
		return nil, apperr.Validation(op, "you cannot invite yourself")
	}

	existing, err := m.store.GetConnections(ctx, store.ConnectionFilter{
		RequesterID:    &requester.ID,
		RecipientEmail: &email,
	})
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}
	for _, c := range existing {
		if c.Status == model.ConnectionRejected && m.policy.AllowReinviteAfterReject {
			continue
		}
		return nil, apperr.DuplicateInvite(op, email)
	}

	conn := &model.Connection{
		RequesterID:    requester.ID,
		RequesterEmail: model.NormalizeEmail(requester.Email),
		RecipientEmail: email,
		Status:         model.ConnectionPending,
	}
	if err := m.store.CreateConnection(ctx, conn); err != nil {
		return nil, apperr.Dependency(op, err)
	}

	m.log.Info("connection requested",
		zap.String("connection_id", conn.ID),
		zap.String("requester_id", requester.ID),
		zap.String("recipient_email", email),
	)

	invite := mailer.BuildInviteEmail(email, mailer.InviteEmailData{
		SiteName:       m.siteName,
		AppURL:         m.appURL,
		RequesterEmail: conn.RequesterEmail,
	})
	m.notifier.Deliver(ctx, op, notify.Delivery{Email: &invite})

	return conn, nil
}

// Respond accepts or rejects a pending connection on behalf of its
// recipient. Accepting notifies the requester.
func (m *Manager) Respond(
	ctx context.Context,
	connectionID string,
	responder model.Identity,
	accept bool,
) (*model.Connection, error) {
	const op = "team.respond"

	if connectionID == "" {
		return nil, apperr.Validation(op, "connection id is required")
	}

	conn, err := m.store.GetConnectionByID(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(op, "connection", connectionID)
	}
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}

	if conn.Status != model.ConnectionPending {
		return nil, apperr.InvalidTransition(op, "connection is already %s", conn.Status)
	}
	if !model.SameEmail(conn.RecipientEmail, responder.Email) {
		return nil, apperr.Forbidden(op, "only %s can respond to this invitation", conn.RecipientEmail)
	}

	conn.Status = model.ConnectionRejected
	if accept {
		conn.Status = model.ConnectionAccepted
	}
	if responder.ID != "" {
		id := responder.ID
		conn.RecipientID = &id
	}

	err = m.store.ResolveConnection(ctx, conn)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.InvalidTransition(op, "connection is no longer pending")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound(op, "connection", connectionID)
	case err != nil:
		return nil, apperr.Dependency(op, err)
	}

	m.log.Info("connection resolved",
		zap.String("connection_id", conn.ID),
		zap.String("status", conn.Status),
		zap.String("responder_id", responder.ID),
	)

	if accept {
		m.notifier.Deliver(ctx, op, notify.Delivery{
			Notification: &model.Notification{
				UserID:  conn.RequesterID,
				Type:    model.NotificationConnectionAccepted,
				Title:   "Invitation accepted",
				Message: conn.RecipientEmail + " accepted your team invitation.",
				Payload: map[string]string{
					"connection_id":   conn.ID,
					"recipient_id":    responder.ID,
					"recipient_email": conn.RecipientEmail,
				},
			},
		})
	}

	return conn, nil
}

// ListTeamMembers returns the counterparties of every accepted connection
// touching user, in connection creation order. A counterparty appears once
// even when connected in both directions.
func (m *Manager) ListTeamMembers(ctx context.Context, user model.Identity) ([]model.TeamMember, error) {
	const op = "team.list_members"

	accepted := model.ConnectionAccepted
	conns, err := m.store.GetConnections(ctx, store.ConnectionFilter{
		Involving: &user,
		Status:    &accepted,
	})
	if err != nil {
		return nil, apperr.Dependency(op, err)
	}

	seen := make(map[string]bool)
	var members []model.TeamMember
	for _, c := range conns {
		other, ok := c.Counterparty(user)
		if !ok {
			continue
		}
		key := other.ID
		if key == "" {
			key = model.NormalizeEmail(other.Email)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		members = append(members, model.TeamMember{
			ID:           other.ID,
			Email:        other.Email,
			ConnectionID: c.ID,
			Since:        c.UpdatedAt,
		})
	}
	return members, nil
}

// ListPendingIncoming returns pending invitations addressed to user.
func (m *Manager) ListPendingIncoming(ctx context.Context, user model.Identity) ([]model.Connection, error) {
	if user.Email == "" {
		return nil, nil
	}
	pending := model.ConnectionPending
	conns, err := m.store.GetConnections(ctx, store.ConnectionFilter{
		RecipientEmail: &user.Email,
		Status:         &pending,
	})
	if err != nil {
		return nil, apperr.Dependency("team.list_incoming", err)
	}
	return conns, nil
}

// ListPendingOutgoing returns pending invitations sent by user.
func (m *Manager) ListPendingOutgoing(ctx context.Context, user model.Identity) ([]model.Connection, error) {
	if user.ID == "" {
		return nil, nil
	}
	pending := model.ConnectionPending
	conns, err := m.store.GetConnections(ctx, store.ConnectionFilter{
		RequesterID: &user.ID,
		Status:      &pending,
	})
	if err != nil {
		return nil, apperr.Dependency("team.list_outgoing", err)
	}
	return conns, nil
}

// Member looks up memberID among user's teammates.
func (m *Manager) Member(ctx context.Context, user model.Identity, memberID string) (model.TeamMember, bool, error) {
	members, err := m.ListTeamMembers(ctx, user)
	if err != nil {
		return model.TeamMember{}, false, err
	}
	for _, tm := range members {
		if tm.ID == memberID {
			return tm, true, nil
		}
	}
	return model.TeamMember{}, false, nil
}

// IsTeamMember reports whether memberID is an accepted teammate of user.
func (m *Manager) IsTeamMember(ctx context.Context, user model.Identity, memberID string) (bool, error) {
	_, ok, err := m.Member(ctx, user, memberID)
	return ok, err
}
