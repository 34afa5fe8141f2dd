package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"giftlist/internal/giftview"
	"giftlist/internal/live"
	"giftlist/internal/logger"
	"giftlist/internal/models"
	"giftlist/internal/testutil"
)

type apiFixture struct {
	store             *testutil.MemStore
	alice, bob, carol models.User
	app               *fiber.App
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		alice: models.User{ID: uuid.New(), DisplayName: "Alice", Email: "alice@example.com"},
		bob:   models.User{ID: uuid.New(), DisplayName: "Bob"},
		carol: models.User{ID: uuid.New(), DisplayName: "Carol"},
	}
	f.store = testutil.NewMemStore(live.NewHub(), f.alice, f.bob, f.carol)

	f.app = fiber.New()
	f.app.Use(func(c fiber.Ctx) error {
		c.Locals("user", &f.alice)
		return c.Next()
	})
	users := NewUserHandler(f.store)
	items := NewItemHandler(f.store, 4, logger.Discard())
	f.app.Get("/api/v1/me", users.Me)
	f.app.Get("/api/v1/users", users.List)
	f.app.Get("/api/v1/recipients/:uid/items", items.RecipientItems)
	return f
}

func (f *apiFixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRecipientItems_MergesGiverState(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	lego := models.Item{OwnerID: f.bob.ID, CreatedBy: f.bob.ID, Name: "Lego Set", Notes: "the big one"}
	require.NoError(t, f.store.CreateItem(ctx, &lego))
	socks := models.Item{OwnerID: f.bob.ID, CreatedBy: f.bob.ID, Name: "Socks"}
	require.NoError(t, f.store.CreateItem(ctx, &socks))

	require.NoError(t, f.store.SetPurchased(ctx, lego.ID, f.carol.ID, true))
	require.NoError(t, f.store.SetGiverNote(ctx, lego.ID, f.carol.ID, "Got it at the mall"))
	require.NoError(t, f.store.SetGiverNote(ctx, lego.ID, f.alice.ID, "Wrapping paper?"))

	var body struct {
		Status string                 `json:"status"`
		Data   recipientItemsResponse `json:"data"`
	}
	status := f.get(t, "/api/v1/recipients/"+f.bob.ID.String()+"/items?filter=purchased", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "Bob", body.Data.Recipient)
	require.Equal(t, giftview.FilterPurchased, body.Data.Filter)

	list := body.Data.List
	require.Equal(t, 2, list.Total)
	require.Equal(t, 1, list.Purchased)
	require.Len(t, list.Cards, 1)

	card := list.Cards[0]
	require.Equal(t, "Lego Set", card.Name)
	require.Equal(t, "the big one", card.OwnerNotes)
	require.True(t, card.Purchased)
	require.False(t, card.YourPurchased)
	require.Equal(t, "Wrapping paper?", card.YourNote)
	require.Equal(t, []giftview.NoteLine{
		{Author: "Carol", Text: "Got it at the mall"},
		{Author: "You", Text: "Wrapping paper?", Mine: true},
	}, card.GiverNotes)
}

func TestRecipientItems_Rejections(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"own list", "/api/v1/recipients/" + f.alice.ID.String() + "/items", http.StatusForbidden},
		{"unknown member", "/api/v1/recipients/" + uuid.NewString() + "/items", http.StatusNotFound},
		{"malformed id", "/api/v1/recipients/not-a-uuid/items", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			require.Equal(t, tt.want, f.get(t, tt.path, &body))
			require.Equal(t, "error", body["status"])
		})
	}
}

func TestUsers_MeAndList(t *testing.T) {
	f := newAPIFixture(t)

	var me struct {
		Data userResponse `json:"data"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/me", &me))
	require.Equal(t, f.alice.ID, me.Data.ID)
	require.Equal(t, "alice@example.com", me.Data.Email)

	var roster struct {
		Data []userResponse `json:"data"`
	}
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/users", &roster))
	require.Len(t, roster.Data, 2)
	for _, u := range roster.Data {
		require.NotEqual(t, f.alice.ID, u.ID)
		require.Empty(t, u.Email)
	}
}
