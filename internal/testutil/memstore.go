package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"giftlist/internal/db"
	"giftlist/internal/live"
	"giftlist/internal/models"
)

// MemStore is an in-memory family.Store that publishes on the hub the way
// the database triggers do.
type MemStore struct {
	hub *live.Hub

	mu          sync.Mutex
	users       []models.User
	items       []models.Item // insertion order
	annotations map[uuid.UUID][]models.GiverAnnotation
	writeErr    error
}

// NewMemStore returns a store holding users and no items.
func NewMemStore(hub *live.Hub, users ...models.User) *MemStore {
	return &MemStore{hub: hub, users: users, annotations: map[uuid.UUID][]models.GiverAnnotation{}}
}

func (s *MemStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *MemStore) list(match func(models.Item) bool) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Item
	for i := len(s.items) - 1; i >= 0; i-- {
		if match(s.items[i]) {
			out = append(out, s.items[i])
		}
	}
	return out
}

func (s *MemStore) ListPersonalItems(_ context.Context, owner uuid.UUID) ([]models.Item, error) {
	return s.list(func(it models.Item) bool { return it.OwnerID == owner && it.CreatedBy == owner }), nil
}

func (s *MemStore) ListItemsByOwner(_ context.Context, owner uuid.UUID) ([]models.Item, error) {
	return s.list(func(it models.Item) bool { return it.OwnerID == owner }), nil
}

func (s *MemStore) ListAnnotations(_ context.Context, itemID uuid.UUID) ([]models.GiverAnnotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GiverAnnotation(nil), s.annotations[itemID]...), nil
}

func (s *MemStore) GetOwnItem(_ context.Context, id, owner uuid.UUID) (*models.Item, error) {
	found := s.list(func(it models.Item) bool { return it.ID == id && it.OwnerID == owner && it.CreatedBy == owner })
	if len(found) == 0 {
		return nil, db.ErrItemNotFound
	}
	return &found[0], nil
}

func (s *MemStore) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return s.writeErr
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	s.items = append(s.items, *item)
	s.mu.Unlock()
	s.hub.Publish(live.OwnerTopic(item.OwnerID))
	return nil
}

// CreateSuggestion stores the item and the giver's note together or not at all.
func (s *MemStore) CreateSuggestion(_ context.Context, item *models.Item, note string) error {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return s.writeErr
	}
	if note != "" && item.CreatedBy == item.OwnerID {
		s.mu.Unlock()
		return db.ErrOwnItem
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	s.items = append(s.items, *item)
	if note != "" {
		s.annotations[item.ID] = []models.GiverAnnotation{{
			ItemID: item.ID, GiverID: item.CreatedBy, OwnerID: item.OwnerID, Note: note, UpdatedAt: item.CreatedAt,
		}}
	}
	s.mu.Unlock()
	s.hub.Publish(live.OwnerTopic(item.OwnerID))
	return nil
}

func (s *MemStore) UpdateOwnItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return s.writeErr
	}
	for i := range s.items {
		if s.items[i].ID == item.ID && s.items[i].OwnerID == item.OwnerID && s.items[i].CreatedBy == item.OwnerID {
			s.items[i].Name, s.items[i].Link, s.items[i].Notes = item.Name, item.Link, item.Notes
			s.mu.Unlock()
			s.hub.Publish(live.OwnerTopic(item.OwnerID))
			return nil
		}
	}
	s.mu.Unlock()
	return db.ErrItemNotFound
}

func (s *MemStore) DeleteOwnItem(_ context.Context, id, owner uuid.UUID) error {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].OwnerID == owner && s.items[i].CreatedBy == owner {
			s.items = append(s.items[:i], s.items[i+1:]...)
			delete(s.annotations, id)
			s.mu.Unlock()
			s.hub.Publish(live.OwnerTopic(owner))
			return nil
		}
	}
	s.mu.Unlock()
	return db.ErrItemNotFound
}

func (s *MemStore) upsert(itemID, giver uuid.UUID, edit func(*models.GiverAnnotation)) error {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return s.writeErr
	}
	var owner uuid.UUID
	for _, it := range s.items {
		if it.ID == itemID {
			owner = it.OwnerID
		}
	}
	if owner == uuid.Nil {
		s.mu.Unlock()
		return db.ErrItemNotFound
	}
	if owner == giver {
		s.mu.Unlock()
		return db.ErrOwnItem
	}
	list := s.annotations[itemID]
	idx := -1
	for i := range list {
		if list[i].GiverID == giver {
			idx = i
		}
	}
	if idx < 0 {
		list = append(list, models.GiverAnnotation{ItemID: itemID, GiverID: giver, OwnerID: owner})
		idx = len(list) - 1
	}
	edit(&list[idx])
	s.annotations[itemID] = list
	s.mu.Unlock()
	s.hub.Publish(live.OwnerTopic(owner))
	return nil
}

func (s *MemStore) SetPurchased(_ context.Context, itemID, giver uuid.UUID, purchased bool) error {
	return s.upsert(itemID, giver, func(a *models.GiverAnnotation) { a.Purchased = purchased })
}

func (s *MemStore) SetGiverNote(_ context.Context, itemID, giver uuid.UUID, note string) error {
	return s.upsert(itemID, giver, func(a *models.GiverAnnotation) { a.Note = note })
}

// FailWrites makes every later write return err. Nil restores writes.
func (s *MemStore) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}
