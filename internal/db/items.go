package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"giftlist/internal/models"
)

const itemColumns = `id, owner_id, created_by, name, link, notes, created_at, updated_at,
	link_status, link_checked_at, link_error`

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.CreatedBy,
		&item.Name,
		&item.Link,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.LinkStatus,
		&item.LinkCheckedAt,
		&item.LinkError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func collectItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItem inserts a new item. ID and timestamps are filled in from the row.
func (d *DB) CreateItem(ctx context.Context, item *models.Item) error {
	return insertItem(ctx, d.Pool, item)
}

// CreateSuggestion adds an item to someone else's list together with the
// suggesting giver's note, in one transaction. item.CreatedBy is the giver.
// An empty note writes no annotation.
func (d *DB) CreateSuggestion(ctx context.Context, item *models.Item, note string) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertItem(ctx, tx, item); err != nil {
		return err
	}

	if note != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO giver_data (item_id, giver_id, owner_id, note)
			VALUES ($1, $2, $3, $4)
		`, item.ID, item.CreatedBy, item.OwnerID, note)
		switch {
		case isCheckViolation(err):
			return ErrOwnItem
		case err != nil:
			return fmt.Errorf("failed to save note: %w", err)
		}
	}

	return tx.Commit(ctx)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertItem(ctx context.Context, q rowQuerier, item *models.Item) error {
	query := `
		INSERT INTO items (owner_id, created_by, name, link, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, link_status, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		item.OwnerID,
		item.CreatedBy,
		item.Name,
		item.Link,
		item.Notes,
	).Scan(&item.ID, &item.LinkStatus, &item.CreatedAt, &item.UpdatedAt)
	if err != nil && isForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return err
}

// GetItemByID retrieves an item by ID.
func (d *DB) GetItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return scanItem(d.Pool.QueryRow(ctx, query, id))
}

// GetOwnItem retrieves an item the user created for their own list.
func (d *DB) GetOwnItem(ctx context.Context, id, ownerID uuid.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND owner_id = $2 AND created_by = $2`
	return scanItem(d.Pool.QueryRow(ctx, query, id, ownerID))
}

// UpdateOwnItem saves name, link and notes on an item item.OwnerID put on
// their own list. Suggestions from others are not reachable.
// Changing the link resets its health status.
func (d *DB) UpdateOwnItem(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items SET
			name = $1,
			notes = $2,
			link_status = CASE WHEN link = $3 THEN link_status ELSE 'unknown' END,
			link_checked_at = CASE WHEN link = $3 THEN link_checked_at ELSE NULL END,
			link_error = CASE WHEN link = $3 THEN link_error ELSE NULL END,
			link = $3,
			updated_at = NOW()
		WHERE id = $4 AND owner_id = $5 AND created_by = $5
		RETURNING link_status, updated_at
	`

	err := d.Pool.QueryRow(ctx, query,
		item.Name,
		item.Notes,
		item.Link,
		item.ID,
		item.OwnerID,
	).Scan(&item.LinkStatus, &item.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	return err
}

// DeleteOwnItem deletes an item the owner put on their own list. Annotations
// go with it.
func (d *DB) DeleteOwnItem(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM items WHERE id = $1 AND owner_id = $2 AND created_by = $2`
	result, err := d.Pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// ListPersonalItems returns the items a user put on their own list, newest first.
// Suggestions other people added for them are excluded.
func (d *DB) ListPersonalItems(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE owner_id = $1 AND created_by = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := d.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// ListItemsByOwner returns every item on a recipient's list, newest first.
func (d *DB) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := d.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// GetItemsNeedingLinkCheck returns items with a link that was never checked or
// was last checked more than maxAge ago.
func (d *DB) GetItemsNeedingLinkCheck(ctx context.Context, maxAge time.Duration, limit int) ([]models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE link <> ''
		  AND (link_checked_at IS NULL OR link_checked_at < $1)
		ORDER BY link_checked_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := d.Pool.Query(ctx, query, time.Now().Add(-maxAge), limit)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// UpdateItemLinkStatus records the result of a link health check.
func (d *DB) UpdateItemLinkStatus(ctx context.Context, id uuid.UUID, status string, errorMsg *string) error {
	query := `
		UPDATE items
		SET link_status = $1, link_error = $2, link_checked_at = NOW()
		WHERE id = $3
	`
	_, err := d.Pool.Exec(ctx, query, status, errorMsg, id)
	return err
}

// PurchaseStateCounts holds item totals by aggregate purchase state.
type PurchaseStateCounts struct {
	Open      int
	Purchased int
}

// CountItemsByPurchaseState counts items with and without at least one purchase mark.
func (d *DB) CountItemsByPurchaseState(ctx context.Context) (PurchaseStateCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE NOT purchased),
			COUNT(*) FILTER (WHERE purchased)
		FROM (
			SELECT i.id, COALESCE(BOOL_OR(g.purchased), FALSE) AS purchased
			FROM items i
			LEFT JOIN giver_data g ON g.item_id = i.id
			GROUP BY i.id
		) s
	`

	var counts PurchaseStateCounts
	err := d.Pool.QueryRow(ctx, query).Scan(&counts.Open, &counts.Purchased)
	return counts, err
}
