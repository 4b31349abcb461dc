// Package identity resolves the signed-in user. Workflow operations never
// call it; the CLI resolves the user once and passes it explicitly.
package identity

import (
	"context"
	"errors"
	"net/mail"

	"github.com/nhle/teamtasks/internal/model"
)

// ErrNotSignedIn is returned when no user is configured.
var ErrNotSignedIn = errors.New("no user configured: set user.id and user.email")

// Provider returns the current user.
type Provider interface {
	CurrentUser(ctx context.Context) (model.Identity, error)
}

// ConfigProvider reads the user from the application config.
type ConfigProvider struct {
	User model.UserConfig
}

var _ Provider = ConfigProvider{}

// CurrentUser returns the configured user with a normalized email.
func (p ConfigProvider) CurrentUser(_ context.Context) (model.Identity, error) {
	if p.User.ID == "" || p.User.Email == "" {
		return model.Identity{}, ErrNotSignedIn
	}
	addr, err := mail.ParseAddress(p.User.Email)
	if err != nil {
		return model.Identity{}, errors.Join(ErrNotSignedIn, err)
	}
	return model.Identity{ID: p.User.ID, Email: model.NormalizeEmail(addr.Address)}, nil
}
