package store

import (
	"errors"
	"testing"

	"github.com/pantrylabs/pantrypoints/internal/database"
	"github.com/pantrylabs/pantrypoints/internal/model"
)

func setupLedgerTestDB(t *testing.T) (*LedgerStore, *UserStore, *ContributionTypeStore, *RewardStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLedgerStore(db), NewUserStore(db), NewContributionTypeStore(db), NewRewardStore(db)
}

func TestAddTransactionPrefixSums(t *testing.T) {
	ls, us, _, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	amounts := []int{50, -20, 5}
	wantAfter := []int{50, 30, 35}

	for i, amount := range amounts {
		txType := model.TransactionEarned
		if amount < 0 {
			txType = model.TransactionSpent
		}
		tx, err := ls.AddTransaction(user.ID, amount, txType, "test", nil, nil)
		if err != nil {
			t.Fatalf("add transaction %d: %v", i, err)
		}
		if tx.BalanceAfter != wantAfter[i] {
			t.Errorf("transaction %d balance_after = %d, want %d", i, tx.BalanceAfter, wantAfter[i])
		}
	}

	balance, err := ls.GetBalance(user.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 35 {
		t.Errorf("balance = %d, want 35", balance)
	}

	// Most recent first
	transactions, err := ls.ListTransactions(user.ID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	if transactions[0].Amount != 5 || transactions[2].Amount != 50 {
		t.Errorf("transactions out of order: first amount %d, last amount %d", transactions[0].Amount, transactions[2].Amount)
	}
}

func TestAddTransactionInsufficientBalance(t *testing.T) {
	ls, us, _, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	if _, err := ls.AddTransaction(user.ID, 10, model.TransactionEarned, "seed", nil, nil); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	_, err := ls.AddTransaction(user.ID, -20, model.TransactionSpent, "overdraw", nil, nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10 (unchanged)", balance)
	}
	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 1 {
		t.Errorf("expected 1 transaction after failed overdraw, got %d", len(transactions))
	}
}

func TestGetBalanceNoActivity(t *testing.T) {
	ls, us, _, _ := setupLedgerTestDB(t)
	user, _ := us.Create("NewUser")

	balance, err := ls.GetBalance(user.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestGetSummary(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	ls.AddTransaction(user.ID, 50, model.TransactionEarned, "earn", nil, nil)
	ls.AddTransaction(user.ID, -20, model.TransactionSpent, "spend", nil, nil)

	// Pending contribution worth 15 counts toward pending approval.
	pendingType, _ := cts.Create("Add Recipe", "", 15, false, true)
	if _, err := ls.CreateContribution(user.ID, pendingType.ID, nil, nil); err != nil {
		t.Fatalf("create contribution: %v", err)
	}

	summary, err := ls.GetSummary(user.ID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.CurrentBalance != 30 {
		t.Errorf("current_balance = %d, want 30", summary.CurrentBalance)
	}
	if summary.LifetimeEarned != 50 {
		t.Errorf("lifetime_earned = %d, want 50", summary.LifetimeEarned)
	}
	if summary.TotalSpent != 20 {
		t.Errorf("total_spent = %d, want 20", summary.TotalSpent)
	}
	if summary.PendingApproval != 15 {
		t.Errorf("pending_approval = %d, want 15", summary.PendingApproval)
	}
	if len(summary.RecentTransactions) != 2 {
		t.Errorf("expected 2 recent transactions, got %d", len(summary.RecentTransactions))
	}
	if len(summary.RecentContributions) != 1 {
		t.Errorf("expected 1 recent contribution, got %d", len(summary.RecentContributions))
	}
}

func TestGetSummaryRecentLimit(t *testing.T) {
	ls, us, _, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	for i := 0; i < 15; i++ {
		if _, err := ls.AddTransaction(user.ID, 1, model.TransactionEarned, "drip", nil, nil); err != nil {
			t.Fatalf("add transaction: %v", err)
		}
	}

	summary, err := ls.GetSummary(user.ID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if len(summary.RecentTransactions) != recentLimit {
		t.Errorf("expected %d recent transactions, got %d", recentLimit, len(summary.RecentTransactions))
	}
}

func TestCreateContributionAutoApprove(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	ctype, _ := cts.Create("Log Groceries", "", 5, true, true)

	c, err := ls.CreateContribution(user.ID, ctype.ID, nil, nil)
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if c.Status != model.ContributionApproved {
		t.Errorf("status = %q, want approved", c.Status)
	}
	if c.PointsAwarded != 5 {
		t.Errorf("points_awarded = %d, want 5", c.PointsAwarded)
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}

	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].ContributionID == nil || *transactions[0].ContributionID != c.ID {
		t.Errorf("transaction contribution_id = %v, want %d", transactions[0].ContributionID, c.ID)
	}
}

func TestCreateContributionPending(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	ctype, _ := cts.Create("Add Recipe", "", 15, false, true)

	entityType := "recipe"
	entityID := "r-42"
	c, err := ls.CreateContribution(user.ID, ctype.ID, &entityType, &entityID)
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if c.Status != model.ContributionPending {
		t.Errorf("status = %q, want pending", c.Status)
	}
	if c.PointsAwarded != 0 {
		t.Errorf("points_awarded = %d, want 0 while pending", c.PointsAwarded)
	}
	if c.EntityType == nil || *c.EntityType != "recipe" {
		t.Errorf("entity_type = %v, want recipe", c.EntityType)
	}

	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 0 {
		t.Errorf("expected no transactions for pending contribution, got %d", len(transactions))
	}
}

func TestCreateContributionUnknownOrInactiveType(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	c, err := ls.CreateContribution(user.ID, 999, nil, nil)
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if c != nil {
		t.Error("expected nil for unknown contribution type")
	}

	inactive, _ := cts.Create("Retired", "", 10, false, false)
	c, err = ls.CreateContribution(user.ID, inactive.ID, nil, nil)
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if c != nil {
		t.Error("expected nil for inactive contribution type")
	}
}

func TestReviewContributionApproveSingleFire(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	ctype, _ := cts.Create("Add Recipe", "", 15, false, true)
	c, _ := ls.CreateContribution(user.ID, ctype.ID, nil, nil)

	ok, err := ls.ReviewContribution(c.ID, nil, true, "")
	if err != nil {
		t.Fatalf("review contribution: %v", err)
	}
	if !ok {
		t.Fatal("expected first review to apply")
	}

	approved, _ := ls.GetContributionByID(c.ID)
	if approved.Status != model.ContributionApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if approved.PointsAwarded != 15 {
		t.Errorf("points_awarded = %d, want 15", approved.PointsAwarded)
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 15 {
		t.Errorf("balance = %d, want 15", balance)
	}

	// Second review is a no-op: no error, not applied, no extra transaction.
	ok, err = ls.ReviewContribution(c.ID, nil, true, "")
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if ok {
		t.Error("expected second review to report not applied")
	}
	balance, _ = ls.GetBalance(user.ID)
	if balance != 15 {
		t.Errorf("balance after double review = %d, want 15", balance)
	}
	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 1 {
		t.Errorf("expected exactly 1 transaction, got %d", len(transactions))
	}
}

func TestReviewContributionReject(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	ctype, _ := cts.Create("Add Recipe", "", 15, false, true)
	c, _ := ls.CreateContribution(user.ID, ctype.ID, nil, nil)

	ok, err := ls.ReviewContribution(c.ID, nil, false, "duplicate of an existing recipe")
	if err != nil {
		t.Fatalf("review contribution: %v", err)
	}
	if !ok {
		t.Fatal("expected rejection to apply")
	}

	rejected, _ := ls.GetContributionByID(c.ID)
	if rejected.Status != model.ContributionRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.PointsAwarded != 0 {
		t.Errorf("points_awarded = %d, want 0", rejected.PointsAwarded)
	}
	if rejected.RejectionReason != "duplicate of an existing recipe" {
		t.Errorf("rejection_reason = %q", rejected.RejectionReason)
	}

	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 0 {
		t.Errorf("expected no transactions after rejection, got %d", len(transactions))
	}

	// A rejected contribution cannot later be approved.
	ok, _ = ls.ReviewContribution(c.ID, nil, true, "")
	if ok {
		t.Error("expected review of rejected contribution to report not applied")
	}
}

func TestReviewContributionMissing(t *testing.T) {
	ls, _, _, _ := setupLedgerTestDB(t)

	ok, err := ls.ReviewContribution(999, nil, true, "")
	if err != nil {
		t.Fatalf("review contribution: %v", err)
	}
	if ok {
		t.Error("expected review of missing contribution to report not applied")
	}
}

func TestReviewContributionFreezesTypeValue(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	ctype, _ := cts.Create("Add Recipe", "", 10, false, true)
	c, _ := ls.CreateContribution(user.ID, ctype.ID, nil, nil)

	// The value looked up at approval time is the one that sticks.
	cts.Update(ctype.ID, "Add Recipe", "", 25, false, true)
	if _, err := ls.ReviewContribution(c.ID, nil, true, ""); err != nil {
		t.Fatalf("review contribution: %v", err)
	}

	approved, _ := ls.GetContributionByID(c.ID)
	if approved.PointsAwarded != 25 {
		t.Errorf("points_awarded = %d, want 25", approved.PointsAwarded)
	}

	// Later edits to the type never rewrite the frozen row.
	cts.Update(ctype.ID, "Add Recipe", "", 99, false, true)
	frozen, _ := ls.GetContributionByID(c.ID)
	if frozen.PointsAwarded != 25 {
		t.Errorf("points_awarded after type edit = %d, want 25", frozen.PointsAwarded)
	}
}

func TestListPendingContributions(t *testing.T) {
	ls, us, cts, _ := setupLedgerTestDB(t)
	alice, _ := us.Create("Alice")
	bob, _ := us.Create("Bob")
	ctype, _ := cts.Create("Add Recipe", "", 15, false, true)

	first, _ := ls.CreateContribution(alice.ID, ctype.ID, nil, nil)
	second, _ := ls.CreateContribution(bob.ID, ctype.ID, nil, nil)
	ls.ReviewContribution(first.ID, nil, true, "")

	pending, err := ls.ListPendingContributions()
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending contribution, got %d", len(pending))
	}
	if pending[0].ID != second.ID {
		t.Errorf("pending[0].ID = %d, want %d", pending[0].ID, second.ID)
	}
}

func TestRedeemReward(t *testing.T) {
	ls, us, _, rs := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	qty := 3
	reward, _ := rs.Create("Movie Night", "", 30, "outing", &qty, true)

	ls.AddTransaction(user.ID, 50, model.TransactionEarned, "seed", nil, nil)

	redemption, err := ls.RedeemReward(user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.PointsSpent != 30 {
		t.Errorf("points_spent = %d, want 30", redemption.PointsSpent)
	}
	if redemption.ReceiptCode == "" {
		t.Error("expected a receipt code")
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if transactions[0].Amount != -30 {
		t.Errorf("redemption transaction amount = %d, want -30", transactions[0].Amount)
	}
	if transactions[0].RewardItemID == nil || *transactions[0].RewardItemID != reward.ID {
		t.Errorf("transaction reward_item_id = %v, want %d", transactions[0].RewardItemID, reward.ID)
	}

	updated, _ := rs.GetByID(reward.ID)
	if updated.Quantity == nil || *updated.Quantity != 2 {
		t.Errorf("quantity = %v, want 2", updated.Quantity)
	}
}

func TestRedeemRewardInsufficientBalance(t *testing.T) {
	ls, us, _, rs := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	reward, _ := rs.Create("Movie Night", "", 30, "outing", nil, true)

	ls.AddTransaction(user.ID, 50, model.TransactionEarned, "seed", nil, nil)
	if _, err := ls.RedeemReward(user.ID, reward.ID); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	// 20 left, costs 30: rejected with every row untouched.
	_, err := ls.RedeemReward(user.ID, reward.ID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}
	redemptions, _ := rs.ListRedemptionsByUser(user.ID)
	if len(redemptions) != 1 {
		t.Errorf("expected 1 redemption, got %d", len(redemptions))
	}
	transactions, _ := ls.ListTransactions(user.ID, 0)
	if len(transactions) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(transactions))
	}
}

func TestRedeemRewardInactive(t *testing.T) {
	ls, us, _, rs := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	reward, _ := rs.Create("Retired Treat", "", 10, "treat", nil, false)
	ls.AddTransaction(user.ID, 50, model.TransactionEarned, "seed", nil, nil)

	_, err := ls.RedeemReward(user.ID, reward.ID)
	if !errors.Is(err, ErrRewardUnavailable) {
		t.Fatalf("expected ErrRewardUnavailable, got %v", err)
	}
}

func TestRedeemRewardOutOfStock(t *testing.T) {
	ls, us, _, rs := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	qty := 1
	reward, _ := rs.Create("Last One", "", 10, "treat", &qty, true)
	ls.AddTransaction(user.ID, 50, model.TransactionEarned, "seed", nil, nil)

	if _, err := ls.RedeemReward(user.ID, reward.ID); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	_, err := ls.RedeemReward(user.ID, reward.ID)
	if !errors.Is(err, ErrRewardUnavailable) {
		t.Fatalf("expected ErrRewardUnavailable, got %v", err)
	}

	balance, _ := ls.GetBalance(user.ID)
	if balance != 40 {
		t.Errorf("balance = %d, want 40", balance)
	}
	updated, _ := rs.GetByID(reward.ID)
	if updated.Quantity == nil || *updated.Quantity != 0 {
		t.Errorf("quantity = %v, want 0", updated.Quantity)
	}
}

func TestRedeemRewardUnknown(t *testing.T) {
	ls, us, _, _ := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")

	redemption, err := ls.RedeemReward(user.ID, 999)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption != nil {
		t.Error("expected nil for unknown reward")
	}
}

func TestRedeemRewardUnlimited(t *testing.T) {
	ls, us, _, rs := setupLedgerTestDB(t)
	user, _ := us.Create("Alice")
	reward, _ := rs.Create("Screen Time", "", 5, "privilege", nil, true)
	ls.AddTransaction(user.ID, 20, model.TransactionEarned, "seed", nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := ls.RedeemReward(user.ID, reward.ID); err != nil {
			t.Fatalf("redemption %d: %v", i, err)
		}
	}

	updated, _ := rs.GetByID(reward.ID)
	if updated.Quantity != nil {
		t.Errorf("quantity = %v, want nil for unlimited reward", updated.Quantity)
	}
	balance, _ := ls.GetBalance(user.ID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
}
