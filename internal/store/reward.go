package store

import (
	"database/sql"
	"fmt"

	"github.com/pantrylabs/pantrypoints/internal/model"
)

// RewardStore manages the reward catalog and redemption history. The actual
// exchange of points for a reward goes through LedgerStore.RedeemReward so
// the three writes it involves share one database transaction.
type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward item methods ---

func scanRewardItem(scanner interface{ Scan(...any) error }) (*model.RewardItem, error) {
	var r model.RewardItem
	var quantity sql.NullInt64
	var active int

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.PointsCost, &r.RewardType, &quantity, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if quantity.Valid {
		q := int(quantity.Int64)
		r.Quantity = &q
	}
	r.Active = active != 0
	return &r, nil
}

const rewardItemCols = `id, name, description, points_cost, reward_type, quantity, active, created_at`

func (s *RewardStore) Create(name, description string, pointsCost int, rewardType string, quantity *int, active bool) (*model.RewardItem, error) {
	var q sql.NullInt64
	if quantity != nil {
		q = sql.NullInt64{Int64: int64(*quantity), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO reward_items (name, description, points_cost, reward_type, quantity, active) VALUES (?, ?, ?, ?, ?, ?)`,
		name, description, pointsCost, rewardType, q, boolToInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.RewardItem, error) {
	row := s.db.QueryRow(`SELECT `+rewardItemCols+` FROM reward_items WHERE id = ?`, id)
	r, err := scanRewardItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward item: %w", err)
	}
	return r, nil
}

// List returns all reward items, active first, then by name.
func (s *RewardStore) List() ([]model.RewardItem, error) {
	rows, err := s.db.Query(`SELECT ` + rewardItemCols + ` FROM reward_items ORDER BY active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reward items: %w", err)
	}
	defer rows.Close()

	return collectRewardItems(rows)
}

// ListActive returns only active reward items, ordered by name.
func (s *RewardStore) ListActive() ([]model.RewardItem, error) {
	rows, err := s.db.Query(`SELECT ` + rewardItemCols + ` FROM reward_items WHERE active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active reward items: %w", err)
	}
	defer rows.Close()

	return collectRewardItems(rows)
}

func collectRewardItems(rows *sql.Rows) ([]model.RewardItem, error) {
	var items []model.RewardItem
	for rows.Next() {
		r, err := scanRewardItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward item: %w", err)
		}
		items = append(items, *r)
	}
	return items, rows.Err()
}

func (s *RewardStore) Update(id int64, name, description string, pointsCost int, rewardType string, quantity *int, active bool) (*model.RewardItem, error) {
	var q sql.NullInt64
	if quantity != nil {
		q = sql.NullInt64{Int64: int64(*quantity), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE reward_items SET name = ?, description = ?, points_cost = ?, reward_type = ?, quantity = ?, active = ? WHERE id = ?`,
		name, description, pointsCost, rewardType, q, boolToInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward item: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM reward_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward item: %w", err)
	}
	return nil
}

// --- Redemption methods ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	var active int

	err := scanner.Scan(&r.ID, &r.UserID, &r.RewardItemID, &r.PointsSpent, &r.ReceiptCode, &active, &r.RedeemedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const redemptionCols = `id, user_id, reward_item_id, points_spent, receipt_code, active, redeemed_at`

func (s *RewardStore) GetRedemptionByID(id int64) (*model.RewardRedemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListRedemptionsByUser(userID int64) ([]model.RewardRedemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE user_id = ? ORDER BY redeemed_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by user: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}
