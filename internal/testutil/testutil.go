// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"giftlist/internal/db"
	"giftlist/internal/models"
)

// TestDB creates a test database connection and returns a cleanup function.
// The test is skipped unless TEST_DATABASE_URL is set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	cleanupTestData(ctx, database.Pool)

	cleanup := func() {
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool *pgxpool.Pool) {
	// Delete in order to respect foreign keys
	pool.Exec(ctx, "DELETE FROM giver_data")
	pool.Exec(ctx, "DELETE FROM items")
	pool.Exec(ctx, "DELETE FROM users")
}

// CreateTestUser registers a family member and returns it.
func CreateTestUser(t *testing.T, database *db.DB, email, name string) *models.User {
	t.Helper()
	user, err := database.RegisterUser(context.Background(), email, name)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestItem adds an item to owner's list on behalf of creator.
func CreateTestItem(t *testing.T, database *db.DB, owner, creator uuid.UUID, name, link string) *models.Item {
	t.Helper()
	item := &models.Item{OwnerID: owner, CreatedBy: creator, Name: name, Link: link}
	if err := database.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}
