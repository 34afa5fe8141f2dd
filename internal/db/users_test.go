package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRegisterUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := db.RegisterUser(ctx, "  Alice@Example.com ", "Alice")
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if user.ID == uuid.Nil {
		t.Error("RegisterUser() did not set ID")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("RegisterUser() email = %q, want normalized", user.Email)
	}
	if user.IsBound() {
		t.Error("new registration should not be bound to a subject")
	}

	_, err = db.RegisterUser(ctx, "alice@example.com", "Alice again")
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("RegisterUser() duplicate error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestFindRegistration_BindAndMirror(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	registered, err := db.RegisterUser(ctx, "bob@example.com", "")
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	found, err := db.FindRegistration(ctx, "sub-bob", "BOB@example.com")
	if err != nil {
		t.Fatalf("FindRegistration() by email error = %v", err)
	}
	if found.ID != registered.ID {
		t.Fatalf("FindRegistration() id = %v, want %v", found.ID, registered.ID)
	}

	if err := db.BindSubject(ctx, found.ID, "sub-bob"); err != nil {
		t.Fatalf("BindSubject() error = %v", err)
	}
	if err := db.BindSubject(ctx, found.ID, "sub-other"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("BindSubject() on bound row error = %v, want ErrUserNotFound", err)
	}

	if err := db.MirrorProfile(ctx, found.ID, "Bob B", "bob@example.com", "https://img/bob.png"); err != nil {
		t.Fatalf("MirrorProfile() error = %v", err)
	}

	bound, err := db.GetUserBySub(ctx, "sub-bob")
	if err != nil {
		t.Fatalf("GetUserBySub() error = %v", err)
	}
	if bound.DisplayName != "Bob B" || bound.PhotoURL != "https://img/bob.png" {
		t.Errorf("profile not mirrored: %+v", bound)
	}
	if bound.LastLoginAt == nil {
		t.Error("MirrorProfile() should set last_login_at")
	}

	// A bound row is no longer matched by email for another subject.
	if _, err := db.FindRegistration(ctx, "sub-impostor", "bob@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("FindRegistration() impostor error = %v, want ErrUserNotFound", err)
	}
}

func TestMirrorProfile_NeverInserts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	err := db.MirrorProfile(ctx, uuid.New(), "Ghost", "ghost@example.com", "")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("MirrorProfile() error = %v, want ErrUserNotFound", err)
	}

	count, err := db.GetUserCount(ctx)
	if err != nil {
		t.Fatalf("GetUserCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("GetUserCount() = %d, want 0", count)
	}
}

func TestListUsers_OrderedByName(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	for _, name := range []string{"Carol", "Alice", "Bob"} {
		if _, err := db.RegisterUser(ctx, name+"@example.com", name); err != nil {
			t.Fatalf("RegisterUser(%s) error = %v", name, err)
		}
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}

	var got []string
	for _, u := range users {
		got = append(got, u.DisplayName)
	}
	want := []string{"Alice", "Bob", "Carol"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("ListUsers() order = %v, want %v", got, want)
		}
	}
}

func TestRegisterMembers_SkipsExisting(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := db.RegisterUser(ctx, "alice@example.com", "Alice"); err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	added, err := db.RegisterMembers(ctx, []Member{
		{Email: "Alice@example.com", DisplayName: "Alice"},
		{Email: "dave@example.com", DisplayName: "Dave"},
	})
	if err != nil {
		t.Fatalf("RegisterMembers() error = %v", err)
	}
	if added != 1 {
		t.Errorf("RegisterMembers() added = %d, want 1", added)
	}

	count, err := db.GetUserCount(ctx)
	if err != nil {
		t.Fatalf("GetUserCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("GetUserCount() = %d, want 2", count)
	}
}
