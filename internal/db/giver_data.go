package db

import (
	"context"

	"github.com/google/uuid"

	"giftlist/internal/models"
)

// ListAnnotations returns every giver's annotation for an item in a stable
// order (oldest first), which is the order giver notes are shown in.
func (d *DB) ListAnnotations(ctx context.Context, itemID uuid.UUID) ([]models.GiverAnnotation, error) {
	query := `
		SELECT item_id, giver_id, owner_id, purchased, note, updated_at
		FROM giver_data
		WHERE item_id = $1
		ORDER BY created_at ASC, giver_id ASC
	`

	rows, err := d.Pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var annotations []models.GiverAnnotation
	for rows.Next() {
		var a models.GiverAnnotation
		if err := rows.Scan(&a.ItemID, &a.GiverID, &a.OwnerID, &a.Purchased, &a.Note, &a.UpdatedAt); err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}

	return annotations, rows.Err()
}

// SetPurchased upserts the giver's purchase mark, leaving the note untouched.
// ownerID is taken from the item row, not trusted from the caller.
func (d *DB) SetPurchased(ctx context.Context, itemID, giverID uuid.UUID, purchased bool) error {
	query := `
		INSERT INTO giver_data (item_id, giver_id, owner_id, purchased)
		SELECT i.id, $2, i.owner_id, $3 FROM items i WHERE i.id = $1
		ON CONFLICT (item_id, giver_id) DO UPDATE SET
			purchased = EXCLUDED.purchased,
			updated_at = NOW()
	`
	return d.upsertAnnotation(ctx, query, itemID, giverID, purchased)
}

// SetGiverNote upserts the giver's note, leaving the purchase mark untouched.
func (d *DB) SetGiverNote(ctx context.Context, itemID, giverID uuid.UUID, note string) error {
	query := `
		INSERT INTO giver_data (item_id, giver_id, owner_id, note)
		SELECT i.id, $2, i.owner_id, $3 FROM items i WHERE i.id = $1
		ON CONFLICT (item_id, giver_id) DO UPDATE SET
			note = EXCLUDED.note,
			updated_at = NOW()
	`
	return d.upsertAnnotation(ctx, query, itemID, giverID, note)
}

func (d *DB) upsertAnnotation(ctx context.Context, query string, itemID, giverID uuid.UUID, value any) error {
	result, err := d.Pool.Exec(ctx, query, itemID, giverID, value)
	if err != nil {
		switch {
		case isCheckViolation(err):
			return ErrOwnItem
		case isForeignKeyViolation(err):
			return ErrUserNotFound
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
