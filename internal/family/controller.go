// Package family holds the live state of one signed-in browser session: the
// viewer's own list, the family roster, and the selected recipient's list.
package family

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftlist/internal/giftview"
	"giftlist/internal/live"
	"giftlist/internal/metrics"
	"giftlist/internal/models"
	"giftlist/internal/validation"
)

// Panels a controller announces changes for.
const (
	PanelMyList    = "my-list"
	PanelDirectory = "directory"
	PanelRecipient = "recipient"
)

// Panels lists every panel name.
var Panels = []string{PanelMyList, PanelDirectory, PanelRecipient}

var (
	ErrWriteFailed      = errors.New("write failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSelfSelected     = errors.New("you cannot pick your own list")
	ErrUnknownRecipient = errors.New("recipient is not a registered family member")
	ErrNoRecipient      = errors.New("select a recipient first")
	ErrClosed           = errors.New("session closed")
)

// InputError carries a user-facing validation message.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Store is the persistence the controller needs.
type Store interface {
	giftview.AnnotationSource

	ListUsers(ctx context.Context) ([]models.User, error)
	ListPersonalItems(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	GetOwnItem(ctx context.Context, id, ownerID uuid.UUID) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	CreateSuggestion(ctx context.Context, item *models.Item, note string) error
	UpdateOwnItem(ctx context.Context, item *models.Item) error
	DeleteOwnItem(ctx context.Context, id, ownerID uuid.UUID) error
	SetPurchased(ctx context.Context, itemID, giverID uuid.UUID, purchased bool) error
	SetGiverNote(ctx context.Context, itemID, giverID uuid.UUID, note string) error
}

// Options configures controllers.
type Options struct {
	// Workers bounds concurrent annotation reads per snapshot.
	Workers int
	Log     logrus.FieldLogger
}

// Controller owns every live subscription and piece of view state for one
// session. It replaces what would otherwise be process-wide globals.
type Controller struct {
	store   Store
	changes *live.Hub
	viewer  models.User
	log     logrus.FieldLogger
	model   *giftview.Model
	events  *live.Hub

	ctx    context.Context
	cancel context.CancelFunc

	// selectMu serialises recipient switches.
	selectMu      sync.Mutex
	stopRecipient func()

	mu            sync.Mutex
	roster        []models.User
	names         map[uuid.UUID]string
	myItems       []models.Item
	stopMyList    func()
	stopDirectory func()
	lastSeen      time.Time
	closed        bool
}

// NewController builds a controller for viewer. Nothing is loaded until Start.
func NewController(store Store, changes *live.Hub, viewer models.User, opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("viewer_id", viewer.ID)

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:   store,
		changes: changes,
		viewer:  viewer,
		log:     log,
		model: giftview.New(store, giftview.Options{
			ViewerID: viewer.ID,
			Workers:  opts.Workers,
			Log:      log,
			OnFetchError: func(uuid.UUID, error) {
				metrics.AnnotationFetchFailures.Inc()
			},
		}),
		events:   live.NewHub(),
		ctx:      ctx,
		cancel:   cancel,
		names:    map[uuid.UUID]string{},
		lastSeen: time.Now(),
	}
}

// Viewer returns the signed-in user.
func (c *Controller) Viewer() models.User {
	return c.viewer
}

// Events returns the hub on which panel names are published after each change.
func (c *Controller) Events() *live.Hub {
	return c.events
}

// Start attaches the personal list and directory feeds and, when there is
// anyone else in the family, selects the first of them.
func (c *Controller) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stopMyList, err := live.Watch(c.ctx, c.changes, live.OwnerTopic(c.viewer.ID),
		func(ctx context.Context) ([]models.Item, error) {
			return c.store.ListPersonalItems(ctx, c.viewer.ID)
		},
		c.applyMyList,
		c.feedError("my-list"),
	)
	if err != nil {
		return fmt.Errorf("failed to load your list: %w", err)
	}

	stopDirectory, err := live.Watch(c.ctx, c.changes, live.UsersTopic,
		c.store.ListUsers,
		c.applyDirectory,
		c.feedError("directory"),
	)
	if err != nil {
		stopMyList()
		return fmt.Errorf("failed to load family: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stopMyList()
		stopDirectory()
		return ErrClosed
	}
	c.stopMyList = stopMyList
	c.stopDirectory = stopDirectory
	c.mu.Unlock()

	return c.selectFirstIfNone()
}

func (c *Controller) feedError(feed string) func(error) {
	return func(err error) {
		metrics.SubscriptionErrors.WithLabelValues(feed).Inc()
		c.log.WithError(err).WithField("feed", feed).Error("Live feed reload failed")
	}
}

func (c *Controller) applyMyList(items []models.Item) {
	c.mu.Lock()
	c.myItems = items
	c.mu.Unlock()
	c.events.Publish(PanelMyList)
}

func (c *Controller) applyDirectory(users []models.User) {
	roster := make([]models.User, 0, len(users))
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name()
		if u.ID != c.viewer.ID {
			roster = append(roster, u)
		}
	}

	c.mu.Lock()
	c.roster = roster
	c.names = names
	c.mu.Unlock()
	c.events.Publish(PanelDirectory)

	// Directory updates arrive on the watch goroutine; selecting from here
	// would wait on that same goroutine when the selection is replaced.
	if c.model.Recipient() == uuid.Nil && len(roster) > 0 {
		go func() {
			if err := c.selectFirstIfNone(); err != nil && !errors.Is(err, ErrClosed) {
				c.log.WithError(err).Warn("Failed to auto-select recipient")
			}
		}()
	}
}

func (c *Controller) selectFirstIfNone() error {
	c.mu.Lock()
	var first uuid.UUID
	if len(c.roster) > 0 {
		first = c.roster[0].ID
	}
	c.mu.Unlock()

	if first == uuid.Nil || c.model.Recipient() != uuid.Nil {
		return nil
	}
	return c.selectRecipient(first, true)
}

// SelectRecipient switches the recipient view to recipientID. The previous
// recipient's feed is released before the new one is attached.
func (c *Controller) SelectRecipient(ctx context.Context, recipientID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.selectRecipient(recipientID, false)
}

func (c *Controller) selectRecipient(recipientID uuid.UUID, onlyIfNone bool) error {
	if recipientID == c.viewer.ID {
		return ErrSelfSelected
	}
	if _, ok := c.Member(recipientID); !ok {
		return ErrUnknownRecipient
	}

	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if onlyIfNone && c.model.Recipient() != uuid.Nil {
		return nil
	}

	if c.stopRecipient != nil {
		c.stopRecipient()
		c.stopRecipient = nil
	}

	gen := c.model.Select(recipientID)
	c.events.Publish(PanelRecipient)

	rctx, rcancel := context.WithCancel(c.ctx)
	stop, err := live.Watch(rctx, c.changes, live.OwnerTopic(recipientID),
		func(ctx context.Context) ([]models.Item, error) {
			return c.store.ListItemsByOwner(ctx, recipientID)
		},
		func(items []models.Item) {
			if c.model.Ingest(rctx, gen, items) {
				c.events.Publish(PanelRecipient)
			}
		},
		c.feedError("recipient"),
	)
	if err != nil {
		rcancel()
		c.model.Reset()
		c.events.Publish(PanelRecipient)
		return fmt.Errorf("failed to load list: %w", err)
	}

	c.stopRecipient = func() {
		rcancel()
		stop()
	}
	return nil
}

// SetFilter changes the recipient list filter.
func (c *Controller) SetFilter(f giftview.Filter) {
	c.model.SetFilter(f)
	c.events.Publish(PanelRecipient)
}

// SetSortUnpurchasedFirst toggles unpurchased-first ordering.
func (c *Controller) SetSortUnpurchasedFirst(on bool) {
	c.model.SetUnpurchasedFirst(on)
	c.events.Publish(PanelRecipient)
}

// TogglePurchase flips the viewer's purchase mark on an item of the selected
// recipient. The view changes immediately and is restored if the write fails.
func (c *Controller) TogglePurchase(ctx context.Context, itemID uuid.UUID) (bool, error) {
	mark, undo, err := c.model.ApplyOptimisticPurchaseToggle(itemID)
	if err != nil {
		return false, err
	}
	c.events.Publish(PanelRecipient)

	if err := c.store.SetPurchased(ctx, itemID, c.viewer.ID, mark); err != nil {
		c.rollback(undo, "purchase", err)
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return mark, nil
}

// SaveNote stores the viewer's giver note on an item of the selected recipient.
func (c *Controller) SaveNote(ctx context.Context, itemID uuid.UUID, text string) error {
	if ok, msg := validation.ValidateNote(text); !ok {
		return &InputError{Message: msg}
	}

	note, undo, err := c.model.ApplyOptimisticNoteSave(itemID, text)
	if err != nil {
		return err
	}
	c.events.Publish(PanelRecipient)

	if err := c.store.SetGiverNote(ctx, itemID, c.viewer.ID, note); err != nil {
		c.rollback(undo, "note", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

func (c *Controller) rollback(undo giftview.Undo, op string, err error) {
	metrics.WriteFailures.WithLabelValues(op).Inc()
	c.log.WithError(err).WithField("op", op).Warn("Write failed, reverting local change")
	if c.model.Rollback(undo) {
		c.events.Publish(PanelRecipient)
	}
}

// SuggestItem adds an item to the selected recipient's list on the viewer's
// behalf, with an optional giver note. The recipient never sees it on their
// own list.
func (c *Controller) SuggestItem(ctx context.Context, in validation.ItemInput, note string) (*models.Item, error) {
	recipientID := c.model.Recipient()
	if recipientID == uuid.Nil {
		return nil, ErrNoRecipient
	}

	in = in.Normalize()
	in.Notes = ""
	if ok, msg := validation.ValidateItem(in); !ok {
		return nil, &InputError{Message: msg}
	}
	if ok, msg := validation.ValidateNote(note); !ok {
		return nil, &InputError{Message: msg}
	}

	item := &models.Item{
		OwnerID:   recipientID,
		CreatedBy: c.viewer.ID,
		Name:      in.Name,
		Link:      in.Link,
	}
	if err := c.store.CreateSuggestion(ctx, item, strings.TrimSpace(note)); err != nil {
		return nil, c.writeFailed("suggest", err)
	}
	return item, nil
}

// SaveMyItem creates an item on the viewer's own list, or updates one when id
// is not uuid.Nil.
func (c *Controller) SaveMyItem(ctx context.Context, id uuid.UUID, in validation.ItemInput) (*models.Item, error) {
	in = in.Normalize()
	if ok, msg := validation.ValidateItem(in); !ok {
		return nil, &InputError{Message: msg}
	}

	item := &models.Item{
		ID:        id,
		OwnerID:   c.viewer.ID,
		CreatedBy: c.viewer.ID,
		Name:      in.Name,
		Link:      in.Link,
		Notes:     in.Notes,
	}

	if id == uuid.Nil {
		if err := c.store.CreateItem(ctx, item); err != nil {
			return nil, c.writeFailed("create", err)
		}
		return item, nil
	}

	if err := c.store.UpdateOwnItem(ctx, item); err != nil {
		return nil, c.writeFailed("update", err)
	}
	return item, nil
}

// MyItem returns one of the viewer's own items for editing.
func (c *Controller) MyItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return c.store.GetOwnItem(ctx, id, c.viewer.ID)
}

// DeleteMyItem removes an item from the viewer's own list.
func (c *Controller) DeleteMyItem(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteOwnItem(ctx, id, c.viewer.ID); err != nil {
		return c.writeFailed("delete", err)
	}
	return nil
}

func (c *Controller) writeFailed(op string, err error) error {
	metrics.WriteFailures.WithLabelValues(op).Inc()
	c.log.WithError(err).WithField("op", op).Warn("Write failed")
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}

// MyItems returns the viewer's own items, newest first.
func (c *Controller) MyItems() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Item, len(c.myItems))
	copy(out, c.myItems)
	return out
}

// Roster returns every other family member ordered by name.
func (c *Controller) Roster() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.User, len(c.roster))
	copy(out, c.roster)
	return out
}

// Member looks up a family member other than the viewer.
func (c *Controller) Member(id uuid.UUID) (models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.roster {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// Recipient returns the selected recipient, if any.
func (c *Controller) Recipient() (models.User, bool) {
	id := c.model.Recipient()
	if id == uuid.Nil {
		return models.User{}, false
	}
	return c.Member(id)
}

// RecipientView renders the selected recipient's list.
func (c *Controller) RecipientView() giftview.Rendered {
	c.mu.Lock()
	names := c.names
	c.mu.Unlock()
	return giftview.Render(c.model.RenderInput(names))
}

// Filter returns the active filter and sort settings.
func (c *Controller) Filter() (giftview.Filter, bool) {
	in := c.model.RenderInput(nil)
	return in.Filter, in.UnpurchasedFirst
}

// Done is closed when the controller is closed.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Touch records activity on the session.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (c *Controller) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases every subscription and clears the recipient view.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stops := []func(){c.stopMyList, c.stopDirectory}
	c.mu.Unlock()

	c.cancel()

	c.selectMu.Lock()
	if c.stopRecipient != nil {
		c.stopRecipient()
		c.stopRecipient = nil
	}
	c.selectMu.Unlock()

	for _, stop := range stops {
		if stop != nil {
			stop()
		}
	}
	c.model.Reset()
	c.events.PublishAll()
}
