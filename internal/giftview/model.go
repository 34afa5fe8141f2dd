package giftview

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"giftlist/internal/models"
)

var (
	ErrNoSelection = errors.New("no recipient selected")
	ErrUnknownItem = errors.New("item is not on the selected list")
)

// State is the lifecycle stage of the view for the current selection.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	default:
		return "empty"
	}
}

// AnnotationSource reads every giver annotation for one item.
type AnnotationSource interface {
	ListAnnotations(ctx context.Context, itemID uuid.UUID) ([]models.GiverAnnotation, error)
}

// Options configures a Model.
type Options struct {
	ViewerID uuid.UUID
	// Workers bounds concurrent annotation fetches during one ingest.
	Workers int
	Log     logrus.FieldLogger
	// OnFetchError is called for each item whose annotations could not be read.
	OnFetchError func(itemID uuid.UUID, err error)
}

// Model holds the merged view of one recipient's list for one viewer.
// All methods are safe for concurrent use.
type Model struct {
	source       AnnotationSource
	viewerID     uuid.UUID
	workers      int
	log          logrus.FieldLogger
	onFetchError func(uuid.UUID, error)

	mu               sync.Mutex
	recipientID      uuid.UUID
	gen              uint64 // bumped on every selection change
	seq              uint64 // last snapshot sequence number handed out
	applied          uint64 // sequence number of the snapshot in views
	state            State
	views            []ItemView
	filter           Filter
	unpurchasedFirst bool
}

func New(source AnnotationSource, opts Options) *Model {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Model{
		source:       source,
		viewerID:     opts.ViewerID,
		workers:      workers,
		log:          log,
		onFetchError: opts.OnFetchError,
		filter:       FilterAll,
	}
}

// ViewerID returns the giver this model is built for.
func (m *Model) ViewerID() uuid.UUID {
	return m.viewerID
}

// Select discards all state for the previous recipient and starts loading
// recipientID. The returned generation must accompany every Ingest for it.
func (m *Model) Select(recipientID uuid.UUID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.recipientID = recipientID
	m.views = nil
	m.applied = m.seq
	m.state = StateLoading
	return m.gen
}

// Reset tears the view down to Empty. Pending ingests are discarded.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.recipientID = uuid.Nil
	m.views = nil
	m.applied = m.seq
	m.state = StateEmpty
}

// Ingest replaces the whole view with items and their freshly fetched
// annotations. It returns false when the result was discarded: the selection
// changed since gen was issued, a newer snapshot was applied first, or ctx
// was cancelled.
//
// A failed annotation read degrades that one item to having no annotations.
func (m *Model) Ingest(ctx context.Context, gen uint64, items []models.Item) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	annotations := make([][]models.GiverAnnotation, len(items))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range items {
		g.Go(func() error {
			a, err := m.source.ListAnnotations(ctx, items[i].ID)
			if err != nil {
				if ctx.Err() == nil {
					m.fetchFailed(items[i].ID, err)
				}
				return nil
			}
			annotations[i] = a
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return false
	}

	views := make([]ItemView, len(items))
	for i := range items {
		views[i] = newItemView(items[i], annotations[i], m.viewerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || seq < m.applied {
		return false
	}
	m.views = views
	m.applied = seq
	m.state = StatePopulated
	return true
}

func (m *Model) fetchFailed(itemID uuid.UUID, err error) {
	m.log.WithError(err).WithField("item_id", itemID).Warn("Failed to read giver annotations, using defaults")
	if m.onFetchError != nil {
		m.onFetchError(itemID, err)
	}
}

// SetFilter changes the filter mode. Stored views are untouched.
func (m *Model) SetFilter(f Filter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
}

// SetUnpurchasedFirst toggles the unpurchased-first ordering.
func (m *Model) SetUnpurchasedFirst(on bool) {
	m.mu.Lock()
	m.unpurchasedFirst = on
	m.mu.Unlock()
}

// Recipient returns the selected recipient, or uuid.Nil.
func (m *Model) Recipient() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipientID
}

// Generation returns the current selection generation.
func (m *Model) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// State returns the lifecycle stage.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Views returns a copy of the current view collection in ingest order.
func (m *Model) Views() []ItemView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.views)
}

// View returns the view for one item.
func (m *Model) View(itemID uuid.UUID) (ItemView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(itemID); i >= 0 {
		return m.views[i], true
	}
	return ItemView{}, false
}

// Undo reverts the one field an optimistic edit changed. Later edits to the
// same item are kept.
type Undo struct {
	gen     uint64
	applied uint64
	itemID  uuid.UUID
	created bool // the edit added the viewer's annotation
	revert  func(*models.GiverAnnotation)
}

// ApplyOptimisticPurchaseToggle flips the viewer's own purchase mark on itemID
// and recomputes the aggregate. It returns the viewer's new mark.
func (m *Model) ApplyOptimisticPurchaseToggle(itemID uuid.UUID) (bool, Undo, error) {
	var mark bool
	undo, err := m.editViewer(itemID,
		func(a *models.GiverAnnotation) {
			a.Purchased = !a.Purchased
			mark = a.Purchased
		},
		func(a *models.GiverAnnotation, prev models.GiverAnnotation) {
			a.Purchased = prev.Purchased
		})
	return mark, undo, err
}

// ApplyOptimisticNoteSave sets the viewer's note on itemID. The viewer's
// attributed entry in GiverNotes is replaced, or removed when the trimmed
// note is empty. It returns the trimmed note.
func (m *Model) ApplyOptimisticNoteSave(itemID uuid.UUID, text string) (string, Undo, error) {
	note := strings.TrimSpace(text)
	undo, err := m.editViewer(itemID,
		func(a *models.GiverAnnotation) {
			a.Note = note
		},
		func(a *models.GiverAnnotation, prev models.GiverAnnotation) {
			a.Note = prev.Note
		})
	return note, undo, err
}

func (m *Model) editViewer(
	itemID uuid.UUID,
	edit func(*models.GiverAnnotation),
	restore func(a *models.GiverAnnotation, prev models.GiverAnnotation),
) (Undo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recipientID == uuid.Nil {
		return Undo{}, ErrNoSelection
	}
	i := m.indexOf(itemID)
	if i < 0 {
		return Undo{}, ErrUnknownItem
	}

	prev, found := m.views[i].viewerAnnotation(m.viewerID)
	undo := Undo{
		gen:     m.gen,
		applied: m.applied,
		itemID:  itemID,
		created: !found,
		revert:  func(a *models.GiverAnnotation) { restore(a, prev) },
	}

	// Copy-on-write so earlier Views() results are not affected.
	views := slices.Clone(m.views)
	views[i] = views[i].withViewerAnnotation(m.viewerID, edit)
	m.views = views

	return undo, nil
}

// Rollback reverts an optimistic edit after its write failed. Nothing changes
// if the selection moved on or an authoritative snapshot has arrived since.
func (m *Model) Rollback(u Undo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.revert == nil || u.gen != m.gen || u.applied != m.applied {
		return false
	}
	i := m.indexOf(u.itemID)
	if i < 0 {
		return false
	}

	view := m.views[i].withViewerAnnotation(m.viewerID, u.revert)
	if u.created {
		view = view.withoutBlankViewerAnnotation(m.viewerID)
	}

	views := slices.Clone(m.views)
	views[i] = view
	m.views = views
	return true
}

// RenderInput captures everything Render needs from the current state.
func (m *Model) RenderInput(names map[uuid.UUID]string) RenderInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return RenderInput{
		State:            m.state,
		Views:            slices.Clone(m.views),
		Filter:           m.filter,
		UnpurchasedFirst: m.unpurchasedFirst,
		ViewerID:         m.viewerID,
		Names:            names,
	}
}

func (m *Model) indexOf(itemID uuid.UUID) int {
	for i := range m.views {
		if m.views[i].Item.ID == itemID {
			return i
		}
	}
	return -1
}
