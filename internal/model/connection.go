package model

import "time"

// Connection status constants. A connection leaves pending exactly once.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// Connection is a directed invitation from a requester to a recipient email.
// RecipientID stays nil until the recipient responds.
type Connection struct {
	ID             string    `json:"id" db:"id"`
	RequesterID    string    `json:"requester_id" db:"requester_id"`
	RequesterEmail string    `json:"requester_email" db:"requester_email"`
	RecipientID    *string   `json:"recipient_id,omitempty" db:"recipient_id"`
	RecipientEmail string    `json:"recipient_email" db:"recipient_email"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Requester returns the identity that sent the invitation.
func (c Connection) Requester() Identity {
	return Identity{ID: c.RequesterID, Email: c.RequesterEmail}
}

// Recipient returns the invited identity. The id is empty while pending.
func (c Connection) Recipient() Identity {
	id := ""
	if c.RecipientID != nil {
		id = *c.RecipientID
	}
	return Identity{ID: id, Email: c.RecipientEmail}
}

// Counterparty returns the other side of the connection relative to user,
// and false when user is not a party to it.
func (c Connection) Counterparty(user Identity) (Identity, bool) {
	switch {
	case user.ID != "" && c.RequesterID == user.ID:
		return c.Recipient(), true
	case user.ID != "" && c.RecipientID != nil && *c.RecipientID == user.ID:
		return c.Requester(), true
	case user.Email != "" && SameEmail(c.RecipientEmail, user.Email):
		return c.Requester(), true
	}
	return Identity{}, false
}

// TeamMember is a derived, non-persisted view of an accepted counterparty.
type TeamMember struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	ConnectionID string    `json:"connection_id"`
	Since        time.Time `json:"since"`
}
