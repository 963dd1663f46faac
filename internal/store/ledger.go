package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pantrylabs/pantrypoints/internal/model"
)

// LedgerStore maintains each user's point balance and the append-only
// transaction log behind it. Every balance mutation — direct adjustments,
// contribution approvals, reward redemptions — funnels through one helper
// that runs inside a single database transaction, so the read-modify-write
// on the balance row cannot interleave with a concurrent writer and a
// multi-statement operation either commits whole or not at all.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// recentLimit caps the transaction/contribution lists in GetSummary.
const recentLimit = 10

// --- Transaction methods ---

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var contributionID, rewardItemID sql.NullInt64

	err := scanner.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Description, &contributionID, &rewardItemID, &t.TransactionDate,
	)
	if err != nil {
		return nil, err
	}

	if contributionID.Valid {
		t.ContributionID = &contributionID.Int64
	}
	if rewardItemID.Valid {
		t.RewardItemID = &rewardItemID.Int64
	}
	return &t, nil
}

const transactionCols = `id, user_id, transaction_type, points_amount, balance_after, description, contribution_id, reward_item_id, transaction_date`

// applyTransaction appends a ledger entry and moves the user's stored balance
// inside the given database transaction. It returns the new entry's id, or
// ErrInsufficientBalance when the entry would push the balance below zero.
//
// The points row is upserted first: that write takes sqlite's write lock for
// the rest of the transaction, so the balance read below cannot race another
// writer for the same user.
func applyTransaction(tx *sql.Tx, userID int64, amount int, txType model.TransactionType, description string, contributionID, rewardItemID *int64) (int64, error) {
	if _, err := tx.Exec(
		`INSERT INTO user_points (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`,
		userID,
	); err != nil {
		return 0, fmt.Errorf("ensure points row: %w", err)
	}

	var balance int
	if err := tx.QueryRow(`SELECT balance FROM user_points WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	newBalance := balance + amount
	if newBalance < 0 {
		return 0, ErrInsufficientBalance
	}

	var cID, rID sql.NullInt64
	if contributionID != nil {
		cID = sql.NullInt64{Int64: *contributionID, Valid: true}
	}
	if rewardItemID != nil {
		rID = sql.NullInt64{Int64: *rewardItemID, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO point_transactions (user_id, transaction_type, points_amount, balance_after, description, contribution_id, reward_item_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, string(txType), amount, newBalance, description, cID, rID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	earned := 0
	if amount > 0 {
		earned = amount
	}
	if _, err := tx.Exec(
		`UPDATE user_points SET balance = ?, lifetime_earned = lifetime_earned + ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		newBalance, earned, userID,
	); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	return id, nil
}

// AddTransaction appends a single ledger entry for the user. Returns
// ErrInsufficientBalance (and writes nothing) when the amount would take the
// balance negative.
func (s *LedgerStore) AddTransaction(userID int64, amount int, txType model.TransactionType, description string, contributionID, rewardItemID *int64) (*model.PointTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := applyTransaction(tx, userID, amount, txType, description, contributionID, rewardItemID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTransactionByID(id)
}

func (s *LedgerStore) GetTransactionByID(id int64) (*model.PointTransaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionCols+` FROM point_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the user's ledger entries, most recent first.
// A limit of 0 means no limit.
func (s *LedgerStore) ListTransactions(userID int64, limit int) ([]model.PointTransaction, error) {
	query := `SELECT ` + transactionCols + ` FROM point_transactions WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// GetBalance returns the user's stored balance, 0 when the user has no
// points row yet.
func (s *LedgerStore) GetBalance(userID int64) (int, error) {
	var balance int
	err := s.db.QueryRow(`SELECT balance FROM user_points WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetSummary assembles the dashboard view of a user's ledger. Total spent is
// recomputed from the log rather than kept as a running total; the log is
// the source of truth and summary reads are rare.
func (s *LedgerStore) GetSummary(userID int64) (*model.PointsSummary, error) {
	summary := &model.PointsSummary{UserID: userID}

	err := s.db.QueryRow(
		`SELECT balance, lifetime_earned FROM user_points WHERE user_id = ?`,
		userID,
	).Scan(&summary.CurrentBalance, &summary.LifetimeEarned)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read points row: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(-points_amount), 0) FROM point_transactions WHERE user_id = ? AND points_amount < 0`,
		userID,
	).Scan(&summary.TotalSpent); err != nil {
		return nil, fmt.Errorf("sum spent: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(t.points), 0)
		 FROM contributions c
		 JOIN contribution_types t ON t.id = c.contribution_type_id
		 WHERE c.user_id = ? AND c.status = 'pending'`,
		userID,
	).Scan(&summary.PendingApproval); err != nil {
		return nil, fmt.Errorf("sum pending approval: %w", err)
	}

	transactions, err := s.ListTransactions(userID, recentLimit)
	if err != nil {
		return nil, err
	}
	summary.RecentTransactions = transactions

	contributions, err := s.ListContributionsByUser(userID, recentLimit)
	if err != nil {
		return nil, err
	}
	summary.RecentContributions = contributions

	return summary, nil
}

// --- Contribution methods ---

func scanContribution(scanner interface{ Scan(...any) error }) (*model.Contribution, error) {
	var c model.Contribution
	var approvedBy sql.NullInt64
	var entityType, entityID sql.NullString

	err := scanner.Scan(
		&c.ID, &c.UserID, &c.TypeID, &c.TypeName, &c.PointsAwarded, &c.Status,
		&approvedBy, &c.RejectionReason, &entityType, &entityID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedBy.Valid {
		c.ApprovedBy = &approvedBy.Int64
	}
	if entityType.Valid {
		c.EntityType = &entityType.String
	}
	if entityID.Valid {
		c.EntityID = &entityID.String
	}
	return &c, nil
}

const contributionCols = `c.id, c.user_id, c.contribution_type_id, t.name, c.points_awarded, c.status, c.approved_by, c.rejection_reason, c.entity_type, c.entity_id, c.created_at`
const contributionFrom = ` FROM contributions c JOIN contribution_types t ON t.id = c.contribution_type_id`

// CreateContribution records a user-submitted action of the given type.
// Auto-approve types are granted their points immediately: the contribution
// row, the ledger entry, and the balance move all commit together. Other
// types are stored pending with zero points until reviewed.
// Returns (nil, nil) when the type does not exist or is inactive.
func (s *LedgerStore) CreateContribution(userID, typeID int64, entityType, entityID *string) (*model.Contribution, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var points int
	var name string
	var autoApprove, active int
	err = tx.QueryRow(
		`SELECT points, name, auto_approve, active FROM contribution_types WHERE id = ?`,
		typeID,
	).Scan(&points, &name, &autoApprove, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution type: %w", err)
	}
	if active == 0 {
		return nil, nil
	}

	var eType, eID sql.NullString
	if entityType != nil {
		eType = sql.NullString{String: *entityType, Valid: true}
	}
	if entityID != nil {
		eID = sql.NullString{String: *entityID, Valid: true}
	}

	awarded := 0
	status := model.ContributionPending
	if autoApprove != 0 {
		awarded = points
		status = model.ContributionApproved
	}

	result, err := tx.Exec(
		`INSERT INTO contributions (user_id, contribution_type_id, points_awarded, status, entity_type, entity_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, typeID, awarded, string(status), eType, eID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contribution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if status == model.ContributionApproved {
		if _, err := applyTransaction(tx, userID, points, model.TransactionEarned, "Contribution: "+name, &id, nil); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetContributionByID(id)
}

func (s *LedgerStore) GetContributionByID(id int64) (*model.Contribution, error) {
	row := s.db.QueryRow(`SELECT `+contributionCols+contributionFrom+` WHERE c.id = ?`, id)
	c, err := scanContribution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

// ListContributionsByUser returns the user's contributions, most recent
// first. A limit of 0 means no limit.
func (s *LedgerStore) ListContributionsByUser(userID int64, limit int) ([]model.Contribution, error) {
	query := `SELECT ` + contributionCols + contributionFrom + ` WHERE c.user_id = ? ORDER BY c.id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	return collectContributions(rows)
}

// ListPendingContributions returns every contribution awaiting review,
// oldest first so reviewers work through the backlog in order.
func (s *LedgerStore) ListPendingContributions() ([]model.Contribution, error) {
	rows, err := s.db.Query(`SELECT ` + contributionCols + contributionFrom + ` WHERE c.status = 'pending' ORDER BY c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending contributions: %w", err)
	}
	defer rows.Close()

	return collectContributions(rows)
}

func collectContributions(rows *sql.Rows) ([]model.Contribution, error) {
	var contributions []model.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		contributions = append(contributions, *c)
	}
	return contributions, rows.Err()
}

// ReviewContribution approves or rejects a pending contribution. Approval
// freezes the type's current point value into the row and appends exactly one
// ledger entry; rejection records the reason and leaves points at zero.
// Returns false when the contribution does not exist or was already reviewed,
// so a double review never double-grants.
func (s *LedgerStore) ReviewContribution(id int64, approverID *int64, approve bool, rejectionReason string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var userID, typeID int64
	var status string
	err = tx.QueryRow(
		`SELECT user_id, contribution_type_id, status FROM contributions WHERE id = ?`,
		id,
	).Scan(&userID, &typeID, &status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get contribution: %w", err)
	}
	if status != string(model.ContributionPending) {
		return false, nil
	}

	var approver sql.NullInt64
	if approverID != nil {
		approver = sql.NullInt64{Int64: *approverID, Valid: true}
	}

	if !approve {
		if _, err := tx.Exec(
			`UPDATE contributions SET status = 'rejected', approved_by = ?, rejection_reason = ? WHERE id = ?`,
			approver, rejectionReason, id,
		); err != nil {
			return false, fmt.Errorf("reject contribution: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit: %w", err)
		}
		return true, nil
	}

	var points int
	var typeName string
	if err := tx.QueryRow(
		`SELECT points, name FROM contribution_types WHERE id = ?`,
		typeID,
	).Scan(&points, &typeName); err != nil {
		return false, fmt.Errorf("get contribution type: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE contributions SET status = 'approved', points_awarded = ?, approved_by = ? WHERE id = ?`,
		points, approver, id,
	); err != nil {
		return false, fmt.Errorf("approve contribution: %w", err)
	}

	if _, err := applyTransaction(tx, userID, points, model.TransactionEarned, "Contribution approved: "+typeName, &id, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// --- Redemption ---

// RedeemReward exchanges points for a reward item. The redemption row, the
// negative ledger entry, and the quantity decrement commit as one database
// transaction; any failure rolls all three back.
//
// Returns (nil, nil) when the reward does not exist, ErrRewardUnavailable
// when it is inactive or out of stock, and ErrInsufficientBalance when the
// user cannot cover the cost.
func (s *LedgerStore) RedeemReward(userID, rewardItemID int64) (*model.RewardRedemption, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var name string
	var cost int
	var quantity sql.NullInt64
	var active int
	err = tx.QueryRow(
		`SELECT name, points_cost, quantity, active FROM reward_items WHERE id = ?`,
		rewardItemID,
	).Scan(&name, &cost, &quantity, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward item: %w", err)
	}
	if active == 0 {
		return nil, ErrRewardUnavailable
	}
	if quantity.Valid && quantity.Int64 <= 0 {
		return nil, ErrRewardUnavailable
	}

	result, err := tx.Exec(
		`INSERT INTO reward_redemptions (user_id, reward_item_id, points_spent, receipt_code) VALUES (?, ?, ?, ?)`,
		userID, rewardItemID, cost, uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	redemptionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := applyTransaction(tx, userID, -cost, model.TransactionSpent, "Reward redeemed: "+name, nil, &rewardItemID); err != nil {
		return nil, err
	}

	if quantity.Valid {
		res, err := tx.Exec(
			`UPDATE reward_items SET quantity = quantity - 1 WHERE id = ? AND quantity > 0`,
			rewardItemID,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement quantity: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n != 1 {
			return nil, ErrRewardUnavailable
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, redemptionID)
	r, err := scanRedemption(row)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}
