package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"giftlist/internal/models"
)

const userColumns = `id, COALESCE(sub, ''), email, display_name, photo_url, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Sub,
		&user.Email,
		&user.DisplayName,
		&user.PhotoURL,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterUser adds an email to the allow-list. This is the only place user
// rows are created; the web application never calls it.
func (d *DB) RegisterUser(ctx context.Context, email, displayName string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	user, err := scanUser(d.Pool.QueryRow(ctx, query, normalizeEmail(email), strings.TrimSpace(displayName)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return user, nil
}

// GetUserBySub retrieves a user by their OIDC subject identifier.
func (d *DB) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE sub = $1`
	return scanUser(d.Pool.QueryRow(ctx, query, sub))
}

// GetUserByID retrieves a user by their UUID.
func (d *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(d.Pool.QueryRow(ctx, query, id))
}

// FindRegistration looks up the registration for a signing-in identity: the row
// already bound to sub, or else an unbound row whose email matches.
func (d *DB) FindRegistration(ctx context.Context, sub, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE sub = $1 OR (sub IS NULL AND $2 <> '' AND email = $2)
		ORDER BY (sub = $1) DESC NULLS LAST
		LIMIT 1
	`
	return scanUser(d.Pool.QueryRow(ctx, query, sub, normalizeEmail(email)))
}

// BindSubject claims an unbound registration for an OIDC subject.
func (d *DB) BindSubject(ctx context.Context, userID uuid.UUID, sub string) error {
	query := `UPDATE users SET sub = $1, updated_at = NOW() WHERE id = $2 AND sub IS NULL`
	result, err := d.Pool.Exec(ctx, query, sub, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSubjectAlreadyUsed
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MirrorProfile copies identity-provider profile fields onto an existing
// registration. It never inserts.
func (d *DB) MirrorProfile(ctx context.Context, userID uuid.UUID, displayName, email, photoURL string) error {
	query := `
		UPDATE users SET
			display_name = $1,
			email = COALESCE(NULLIF($2, ''), email),
			photo_url = $3,
			last_login_at = NOW(),
			updated_at = NOW()
		WHERE id = $4
	`
	result, err := d.Pool.Exec(ctx, query, displayName, normalizeEmail(email), photoURL, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns every registered user ordered by display name.
func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY display_name ASC, email ASC`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// GetUserCount returns the total number of users.
func (d *DB) GetUserCount(ctx context.Context) (int, error) {
	var count int
	err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Member is one allow-list entry to register.
type Member struct {
	Email       string
	DisplayName string
}

// RegisterMembers registers every member that is not registered yet and
// returns how many were added.
func (d *DB) RegisterMembers(ctx context.Context, members []Member) (int, error) {
	added := 0
	for _, m := range members {
		_, err := d.RegisterUser(ctx, m.Email, m.DisplayName)
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			continue
		case err != nil:
			return added, fmt.Errorf("failed to register %s: %w", m.Email, err)
		}
		added++
	}
	return added, nil
}
