package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/teamtasks/internal/model"
)

const connectionColumns = `id, requester_id, requester_email, recipient_id,
	recipient_email, status, created_at, updated_at`

// CreateConnection inserts a new connection request. The recipient email
// is stored normalized.
func (s *SQLiteStore) CreateConnection(ctx context.Context, conn *model.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.Status == "" {
		conn.Status = model.ConnectionPending
	}
	conn.RecipientEmail = model.NormalizeEmail(conn.RecipientEmail)
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.RequesterID, conn.RequesterEmail, conn.RecipientID,
		conn.RecipientEmail, conn.Status, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// ResolveConnection moves a pending connection to conn.Status and stamps
// the recipient id. The update only applies while the stored row is still
// pending; otherwise ErrConflict is returned and nothing changes.
func (s *SQLiteStore) ResolveConnection(ctx context.Context, conn *model.Connection) error {
	conn.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE user_connections SET
			status = ?, recipient_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		conn.Status, conn.RecipientID, conn.UpdatedAt,
		conn.ID, model.ConnectionPending,
	)
	if err != nil {
		return fmt.Errorf("resolving connection %s: %w", conn.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	// Distinguish a missing row from one that already left pending.
	if _, err := s.GetConnectionByID(ctx, conn.ID); err != nil {
		return err
	}
	return fmt.Errorf("connection %s is no longer pending: %w", conn.ID, ErrConflict)
}

// GetConnectionByID retrieves a single connection by ID.
func (s *SQLiteStore) GetConnectionByID(
	ctx context.Context,
	id string,
) (*model.Connection, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+connectionColumns+" FROM user_connections WHERE id = ?", id)

	conn, err := scanConnection(row)
	if err != nil {
		return nil, notFound(err, "connection", id)
	}
	return &conn, nil
}

// GetConnections retrieves connections matching the filter in creation order.
func (s *SQLiteStore) GetConnections(
	ctx context.Context,
	filter ConnectionFilter,
) ([]model.Connection, error) {
	var conditions []string
	var args []interface{}

	if filter.RequesterID != nil {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, *filter.RequesterID)
	}
	if filter.RecipientEmail != nil {
		conditions = append(conditions, "recipient_email = ?")
		args = append(args, model.NormalizeEmail(*filter.RecipientEmail))
	}
	if filter.Involving != nil {
		var or []string
		if filter.Involving.ID != "" {
			or = append(or, "requester_id = ?", "recipient_id = ?")
			args = append(args, filter.Involving.ID, filter.Involving.ID)
		}
		if filter.Involving.Email != "" {
			or = append(or, "recipient_email = ?")
			args = append(args, model.NormalizeEmail(filter.Involving.Email))
		}
		if len(or) == 0 {
			return nil, nil
		}
		conditions = append(conditions, "("+strings.Join(or, " OR ")+")")
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + connectionColumns + " FROM user_connections"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection row: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// scanConnection scans a user_connections row.
func scanConnection(row rowScanner) (model.Connection, error) {
	var (
		conn        model.Connection
		recipientID *string
	)

	err := row.Scan(
		&conn.ID, &conn.RequesterID, &conn.RequesterEmail, &recipientID,
		&conn.RecipientEmail, &conn.Status, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return model.Connection{}, err
	}
	conn.RecipientID = recipientID
	return conn, nil
}
