package store

import (
	"testing"

	"github.com/pantrylabs/pantrypoints/internal/database"
	"github.com/pantrylabs/pantrypoints/internal/model"
)

func setupUserTestDB(t *testing.T) (*UserStore, *LedgerStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db), NewLedgerStore(db)
}

func TestUserCRUD(t *testing.T) {
	us, _ := setupUserTestDB(t)

	u, err := us.Create("Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want Alice", u.Name)
	}

	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.Name != "Alice" {
		t.Fatalf("got = %v, want Alice", got)
	}

	updated, err := us.Update(u.ID, "Alicia")
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", updated.Name)
	}

	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, _ = us.GetByID(u.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestUserListSorted(t *testing.T) {
	us, _ := setupUserTestDB(t)

	us.Create("Charlie")
	us.Create("Alice")
	us.Create("Bob")

	users, err := us.List()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].Name != "Alice" || users[1].Name != "Bob" || users[2].Name != "Charlie" {
		t.Errorf("unexpected order: %q, %q, %q", users[0].Name, users[1].Name, users[2].Name)
	}
}

func TestLeaderboard(t *testing.T) {
	us, ls := setupUserTestDB(t)

	alice, _ := us.Create("Alice")
	bob, _ := us.Create("Bob")
	us.Create("Carol") // never earns anything

	ls.AddTransaction(alice.ID, 40, model.TransactionEarned, "chores", nil, nil)
	ls.AddTransaction(bob.ID, 100, model.TransactionEarned, "chores", nil, nil)
	ls.AddTransaction(bob.ID, -60, model.TransactionSpent, "treat", nil, nil)

	entries, err := us.Leaderboard()
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Bob and Alice tie at 40, broken by name; Carol trails at zero.
	if entries[0].UserName != "Alice" || entries[0].Balance != 40 {
		t.Errorf("entries[0] = %q/%d, want Alice/40", entries[0].UserName, entries[0].Balance)
	}
	if entries[1].UserName != "Bob" || entries[1].Balance != 40 {
		t.Errorf("entries[1] = %q/%d, want Bob/40", entries[1].UserName, entries[1].Balance)
	}
	if entries[1].LifetimeEarned != 100 {
		t.Errorf("bob lifetime = %d, want 100", entries[1].LifetimeEarned)
	}
	if entries[2].UserName != "Carol" || entries[2].Balance != 0 {
		t.Errorf("entries[2] = %q/%d, want Carol/0", entries[2].UserName, entries[2].Balance)
	}
}
