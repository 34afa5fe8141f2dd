package family

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"giftlist/internal/giftview"
	"giftlist/internal/live"
	"giftlist/internal/logger"
	"giftlist/internal/models"
	"giftlist/internal/testutil"
	"giftlist/internal/validation"
)

type fixture struct {
	hub               *live.Hub
	store             *testutil.MemStore
	alice, bob, carol models.User
}

func newFixture() *fixture {
	hub := live.NewHub()
	f := &fixture{
		hub:   hub,
		alice: models.User{ID: uuid.New(), DisplayName: "Alice"},
		bob:   models.User{ID: uuid.New(), DisplayName: "Bob"},
		carol: models.User{ID: uuid.New(), DisplayName: "Carol"},
	}
	f.store = testutil.NewMemStore(hub, f.alice, f.bob, f.carol)
	return f
}

func (f *fixture) seed(t *testing.T, owner, creator models.User, name string) models.Item {
	t.Helper()
	it := models.Item{OwnerID: owner.ID, CreatedBy: creator.ID, Name: name}
	require.NoError(t, f.store.CreateItem(context.Background(), &it))
	return it
}

func (f *fixture) start(t *testing.T, viewer models.User) *Controller {
	t.Helper()
	c := NewController(f.store, f.hub, viewer, Options{Workers: 2, Log: logger.Discard()})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func cardNames(r giftview.Rendered) []string {
	var names []string
	for _, c := range r.Cards {
		names = append(names, c.Name)
	}
	return names
}

func TestStart_LoadsListsAndSelectsFirstMember(t *testing.T) {
	f := newFixture()
	f.seed(t, f.alice, f.alice, "Scarf")
	f.seed(t, f.alice, f.bob, "Surprise for Alice")
	f.seed(t, f.bob, f.bob, "Bike")

	c := f.start(t, f.alice)

	my := c.MyItems()
	require.Len(t, my, 1)
	require.Equal(t, "Scarf", my[0].Name)

	roster := c.Roster()
	require.Len(t, roster, 2)
	require.Equal(t, f.bob.ID, roster[0].ID)
	require.Equal(t, f.carol.ID, roster[1].ID)

	recipient, ok := c.Recipient()
	require.True(t, ok)
	require.Equal(t, f.bob.ID, recipient.ID)
	require.Equal(t, []string{"Bike"}, cardNames(c.RecipientView()))
}

func TestSelectRecipient_Rejections(t *testing.T) {
	f := newFixture()
	c := f.start(t, f.alice)

	require.ErrorIs(t, c.SelectRecipient(context.Background(), f.alice.ID), ErrSelfSelected)
	require.ErrorIs(t, c.SelectRecipient(context.Background(), uuid.New()), ErrUnknownRecipient)
}

func TestSelectRecipient_SwitchesFeed(t *testing.T) {
	f := newFixture()
	f.seed(t, f.bob, f.bob, "Bike")
	f.seed(t, f.carol, f.carol, "Easel")
	c := f.start(t, f.alice)

	require.NoError(t, c.SelectRecipient(context.Background(), f.carol.ID))
	require.Equal(t, []string{"Easel"}, cardNames(c.RecipientView()))

	// Changes to the previous recipient no longer reach this view.
	f.seed(t, f.bob, f.bob, "Helmet")
	f.seed(t, f.carol, f.carol, "Paints")
	require.Eventually(t, func() bool {
		names := cardNames(c.RecipientView())
		return len(names) == 2 && names[0] == "Paints"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTogglePurchase_LiveAndRollback(t *testing.T) {
	f := newFixture()
	bike := f.seed(t, f.bob, f.bob, "Bike")
	c := f.start(t, f.alice)

	mark, err := c.TogglePurchase(context.Background(), bike.ID)
	require.NoError(t, err)
	require.True(t, mark)
	require.True(t, c.RecipientView().Cards[0].Purchased)

	f.store.FailWrites(errors.New("network down"))
	_, err = c.TogglePurchase(context.Background(), bike.ID)
	require.ErrorIs(t, err, ErrWriteFailed)

	card := c.RecipientView().Cards[0]
	require.True(t, card.Purchased)
	require.True(t, card.YourPurchased, "failed unmark must leave the mark in place")
}

func TestTogglePurchase_SeenByOtherGiver(t *testing.T) {
	f := newFixture()
	bike := f.seed(t, f.bob, f.bob, "Bike")
	asAlice := f.start(t, f.alice)
	asCarol := f.start(t, f.carol)
	require.NoError(t, asCarol.SelectRecipient(context.Background(), f.bob.ID))

	_, err := asAlice.TogglePurchase(context.Background(), bike.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cards := asCarol.RecipientView().Cards
		return len(cards) == 1 && cards[0].Purchased && !cards[0].YourPurchased
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSaveNote(t *testing.T) {
	f := newFixture()
	bike := f.seed(t, f.bob, f.bob, "Bike")
	c := f.start(t, f.alice)

	require.NoError(t, c.SaveNote(context.Background(), bike.ID, "  ordered  "))
	card := c.RecipientView().Cards[0]
	require.Equal(t, "ordered", card.YourNote)
	require.Equal(t, []giftview.NoteLine{{Author: "You", Text: "ordered", Mine: true}}, card.GiverNotes)

	f.store.FailWrites(errors.New("denied"))
	require.ErrorIs(t, c.SaveNote(context.Background(), bike.ID, "changed"), ErrWriteFailed)
	require.Equal(t, "ordered", c.RecipientView().Cards[0].YourNote)
}

func TestSuggestItem(t *testing.T) {
	f := newFixture()
	c := f.start(t, f.alice)

	_, err := c.SuggestItem(context.Background(), validation.ItemInput{Name: "  "}, "")
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, "Item name is required.", inputErr.Message)

	item, err := c.SuggestItem(context.Background(), validation.ItemInput{Name: "Gloves", Notes: "ignored"}, "size M")
	require.NoError(t, err)
	require.Equal(t, f.bob.ID, item.OwnerID)
	require.Equal(t, f.alice.ID, item.CreatedBy)
	require.Empty(t, item.Notes)

	require.Eventually(t, func() bool {
		cards := c.RecipientView().Cards
		return len(cards) == 1 && cards[0].YourNote == "size M" && cards[0].SuggestedBy == "Alice"
	}, 2*time.Second, 5*time.Millisecond)

	// The recipient does not see the suggestion on their own list.
	asBob := f.start(t, f.bob)
	require.Empty(t, asBob.MyItems())
}

func TestSuggestItem_FailedWriteLeavesNoItem(t *testing.T) {
	f := newFixture()
	c := f.start(t, f.alice)

	f.store.FailWrites(errors.New("connection reset"))
	_, err := c.SuggestItem(context.Background(), validation.ItemInput{Name: "Gloves"}, "size M")
	require.ErrorIs(t, err, ErrWriteFailed)

	items, err := f.store.ListItemsByOwner(context.Background(), f.bob.ID)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSaveAndDeleteMyItem(t *testing.T) {
	f := newFixture()
	c := f.start(t, f.alice)
	ctx := context.Background()

	_, err := c.SaveMyItem(ctx, uuid.Nil, validation.ItemInput{Name: "Lamp", Link: "ftp://x"})
	require.ErrorIs(t, err, ErrInvalidInput)

	item, err := c.SaveMyItem(ctx, uuid.Nil, validation.ItemInput{Name: " Lamp ", Link: "https://example.com/lamp"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.MyItems()) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = c.SaveMyItem(ctx, item.ID, validation.ItemInput{Name: "Desk lamp", Notes: "warm light"})
	require.NoError(t, err)
	got, err := c.MyItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Desk lamp", got.Name)
	require.Equal(t, "warm light", got.Notes)

	require.NoError(t, c.DeleteMyItem(ctx, item.ID))
	require.Eventually(t, func() bool { return len(c.MyItems()) == 0 }, 2*time.Second, 5*time.Millisecond)

	require.ErrorIs(t, c.DeleteMyItem(ctx, item.ID), ErrWriteFailed)
}

func TestMyItemWrites_CannotReachSuggestions(t *testing.T) {
	f := newFixture()
	surprise := f.seed(t, f.bob, f.alice, "Surprise")
	asBob := f.start(t, f.bob)
	ctx := context.Background()

	_, err := asBob.SaveMyItem(ctx, surprise.ID, validation.ItemInput{Name: "Renamed"})
	require.ErrorIs(t, err, ErrWriteFailed)
	require.ErrorIs(t, asBob.DeleteMyItem(ctx, surprise.ID), ErrWriteFailed)
	_, err = asBob.MyItem(ctx, surprise.ID)
	require.Error(t, err)

	items, err := f.store.ListItemsByOwner(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Surprise", items[0].Name)
}

func TestFilterAndSort(t *testing.T) {
	f := newFixture()
	a := f.seed(t, f.bob, f.bob, "A")
	f.seed(t, f.bob, f.bob, "B")
	c := f.start(t, f.alice)

	_, err := c.TogglePurchase(context.Background(), a.ID)
	require.NoError(t, err)

	c.SetFilter(giftview.FilterPurchased)
	require.Equal(t, []string{"A"}, cardNames(c.RecipientView()))

	c.SetFilter(giftview.FilterAll)
	require.Equal(t, []string{"B", "A"}, cardNames(c.RecipientView()))

	c.SetSortUnpurchasedFirst(true)
	filter, sorted := c.Filter()
	require.Equal(t, giftview.FilterAll, filter)
	require.True(t, sorted)
	require.Equal(t, []string{"B", "A"}, cardNames(c.RecipientView()))
}

func TestClose_ReleasesSubscriptions(t *testing.T) {
	f := newFixture()
	c := NewController(f.store, f.hub, f.alice, Options{Log: logger.Discard()})
	require.NoError(t, c.Start(context.Background()))
	require.Greater(t, f.hub.Subscribers(), 0)

	c.Close()
	c.Close()

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, giftview.MessageNoSelection, c.RecipientView().EmptyMessage)
	select {
	case <-c.Done():
	default:
		t.Fatal("Done() not closed")
	}
}
