package store

import (
	"database/sql"
	"fmt"

	"github.com/pantrylabs/pantrypoints/internal/model"
)

// FamilyScoreStore records each family member's 1-5 opinion of an entity and
// keeps the parent row's average in sync. The average is always recomputed
// from the member rows inside the same transaction as the mutation — never
// adjusted incrementally — so it cannot drift. Families are tiny; the full
// recompute is cheap.
type FamilyScoreStore struct {
	db *sql.DB
}

func NewFamilyScoreStore(db *sql.DB) *FamilyScoreStore {
	return &FamilyScoreStore{db: db}
}

// MemberScoreInput is an initial rating supplied when creating a family score.
type MemberScoreInput struct {
	FamilyMemberID int64  `json:"family_member_id"`
	Score          int    `json:"individual_score"`
	Notes          string `json:"notes"`
}

func scanFamilyScore(scanner interface{ Scan(...any) error }) (*model.FamilyScore, error) {
	var f model.FamilyScore
	var average sql.NullFloat64
	var favorite, blacklisted int

	err := scanner.Scan(
		&f.ID, &f.UserID, &f.EntityType, &f.EntityID, &average,
		&f.Notes, &favorite, &blacklisted, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if average.Valid {
		f.AverageScore = &average.Float64
	}
	f.Favorite = favorite != 0
	f.Blacklisted = blacklisted != 0
	return &f, nil
}

const familyScoreCols = `id, user_id, entity_type, entity_id, average_score, notes, favorite, blacklisted, created_at, updated_at`

// Create opens a family score for a (user, entity) pair, optionally seeding
// it with member ratings. Returns ErrScoreExists when a live score for the
// key already exists — callers update the existing one instead.
func (s *FamilyScoreStore) Create(userID int64, entityType, entityID, notes string, favorite, blacklisted bool, initial []MemberScoreInput) (*model.FamilyScore, error) {
	for _, in := range initial {
		if in.Score < 1 || in.Score > 5 {
			return nil, ErrScoreOutOfRange
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(
		`SELECT id FROM family_scores WHERE user_id = ? AND entity_type = ? AND entity_id = ? AND deleted_at IS NULL`,
		userID, entityType, entityID,
	).Scan(&existing)
	if err == nil {
		return nil, ErrScoreExists
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing score: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO family_scores (user_id, entity_type, entity_id, notes, favorite, blacklisted) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, entityType, entityID, notes, boolToInt(favorite), boolToInt(blacklisted),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family score: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, in := range initial {
		if _, err := tx.Exec(
			`INSERT INTO family_member_scores (family_score_id, family_member_id, score, notes) VALUES (?, ?, ?, ?)`,
			id, in.FamilyMemberID, in.Score, in.Notes,
		); err != nil {
			return nil, fmt.Errorf("insert member score: %w", err)
		}
	}

	if len(initial) > 0 {
		if err := recomputeAverage(tx, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns a live family score with its member ratings, or nil when
// the id is unknown or soft-deleted.
func (s *FamilyScoreStore) GetByID(id int64) (*model.FamilyScore, error) {
	row := s.db.QueryRow(`SELECT `+familyScoreCols+` FROM family_scores WHERE id = ? AND deleted_at IS NULL`, id)
	f, err := scanFamilyScore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family score: %w", err)
	}

	if err := s.loadMemberScores(f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetByEntity looks a live family score up by its composite key.
func (s *FamilyScoreStore) GetByEntity(userID int64, entityType, entityID string) (*model.FamilyScore, error) {
	row := s.db.QueryRow(
		`SELECT `+familyScoreCols+` FROM family_scores WHERE user_id = ? AND entity_type = ? AND entity_id = ? AND deleted_at IS NULL`,
		userID, entityType, entityID,
	)
	f, err := scanFamilyScore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family score by entity: %w", err)
	}

	if err := s.loadMemberScores(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FamilyScoreStore) loadMemberScores(f *model.FamilyScore) error {
	rows, err := s.db.Query(
		`SELECT id, family_score_id, family_member_id, score, notes, updated_at
		 FROM family_member_scores WHERE family_score_id = ? ORDER BY id ASC`,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("list member scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.FamilyMemberScore
		if err := rows.Scan(&m.ID, &m.FamilyScoreID, &m.FamilyMemberID, &m.Score, &m.Notes, &m.UpdatedAt); err != nil {
			return fmt.Errorf("scan member score: %w", err)
		}
		f.MemberScores = append(f.MemberScores, m)
	}
	return rows.Err()
}

// Update changes the free-text and flag fields. The average is derived state
// and can only move through member score mutations.
func (s *FamilyScoreStore) Update(id int64, notes string, favorite, blacklisted bool) (*model.FamilyScore, error) {
	_, err := s.db.Exec(
		`UPDATE family_scores SET notes = ?, favorite = ?, blacklisted = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		notes, boolToInt(favorite), boolToInt(blacklisted), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family score: %w", err)
	}
	return s.GetByID(id)
}

// Delete soft-deletes a family score. Member rows stay behind for audit but
// every read and aggregate in this store filters on the live parent, so they
// no longer count anywhere. Returns false when no live row matched.
func (s *FamilyScoreStore) Delete(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE family_scores SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("delete family score: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Member score methods ---

// AddMemberScore records one family member's rating and recomputes the
// parent average in the same transaction. Returns ErrScoreOutOfRange for a
// score outside [1, 5] and (nil, nil) when the parent is missing or deleted.
func (s *FamilyScoreStore) AddMemberScore(familyScoreID, familyMemberID int64, score int, notes string) (*model.FamilyMemberScore, error) {
	if score < 1 || score > 5 {
		return nil, ErrScoreOutOfRange
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	live, err := parentIsLive(tx, familyScoreID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, nil
	}

	result, err := tx.Exec(
		`INSERT INTO family_member_scores (family_score_id, family_member_id, score, notes) VALUES (?, ?, ?, ?)`,
		familyScoreID, familyMemberID, score, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member score: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := recomputeAverage(tx, familyScoreID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetMemberScoreByID(id)
}

// UpdateMemberScore changes an existing rating with the same validation and
// recompute as AddMemberScore. Returns (nil, nil) when the rating does not
// exist or its parent is deleted.
func (s *FamilyScoreStore) UpdateMemberScore(id int64, score int, notes string) (*model.FamilyMemberScore, error) {
	if score < 1 || score > 5 {
		return nil, ErrScoreOutOfRange
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	parentID, err := memberScoreParent(tx, id)
	if err != nil {
		return nil, err
	}
	if parentID == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(
		`UPDATE family_member_scores SET score = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		score, notes, id,
	); err != nil {
		return nil, fmt.Errorf("update member score: %w", err)
	}

	if err := recomputeAverage(tx, parentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetMemberScoreByID(id)
}

// DeleteMemberScore removes a rating and recomputes the parent average;
// removing the last rating leaves the average null, not zero. Returns false
// when the rating does not exist or its parent is deleted.
func (s *FamilyScoreStore) DeleteMemberScore(id int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	parentID, err := memberScoreParent(tx, id)
	if err != nil {
		return false, err
	}
	if parentID == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`DELETE FROM family_member_scores WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete member score: %w", err)
	}

	if err := recomputeAverage(tx, parentID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *FamilyScoreStore) GetMemberScoreByID(id int64) (*model.FamilyMemberScore, error) {
	var m model.FamilyMemberScore
	err := s.db.QueryRow(
		`SELECT id, family_score_id, family_member_id, score, notes, updated_at FROM family_member_scores WHERE id = ?`,
		id,
	).Scan(&m.ID, &m.FamilyScoreID, &m.FamilyMemberID, &m.Score, &m.Notes, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member score: %w", err)
	}
	return &m, nil
}

// parentIsLive reports whether the family score exists and is not deleted.
func parentIsLive(tx *sql.Tx, familyScoreID int64) (bool, error) {
	var id int64
	err := tx.QueryRow(
		`SELECT id FROM family_scores WHERE id = ? AND deleted_at IS NULL`,
		familyScoreID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check family score: %w", err)
	}
	return true, nil
}

// memberScoreParent returns the member score's parent id, or 0 when the
// member score does not exist or its parent is soft-deleted.
func memberScoreParent(tx *sql.Tx, memberScoreID int64) (int64, error) {
	var parentID int64
	err := tx.QueryRow(
		`SELECT s.id FROM family_member_scores m
		 JOIN family_scores s ON s.id = m.family_score_id
		 WHERE m.id = ? AND s.deleted_at IS NULL`,
		memberScoreID,
	).Scan(&parentID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get member score parent: %w", err)
	}
	return parentID, nil
}

// recomputeAverage sets the parent's average to the exact mean of its current
// member scores, or NULL when none remain.
func recomputeAverage(tx *sql.Tx, familyScoreID int64) error {
	var average sql.NullFloat64
	if err := tx.QueryRow(
		`SELECT AVG(score) FROM family_member_scores WHERE family_score_id = ?`,
		familyScoreID,
	).Scan(&average); err != nil {
		return fmt.Errorf("compute average: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE family_scores SET average_score = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		average, familyScoreID,
	); err != nil {
		return fmt.Errorf("store average: %w", err)
	}
	return nil
}

// --- Projections ---

// ListFavorites returns the user's live favorite scores, optionally filtered
// by entity type. Pass "" for all types.
func (s *FamilyScoreStore) ListFavorites(userID int64, entityType string) ([]model.FamilyScore, error) {
	return s.listFlagged(userID, entityType, "favorite")
}

// ListBlacklisted returns the user's live blacklisted scores, optionally
// filtered by entity type.
func (s *FamilyScoreStore) ListBlacklisted(userID int64, entityType string) ([]model.FamilyScore, error) {
	return s.listFlagged(userID, entityType, "blacklisted")
}

func (s *FamilyScoreStore) listFlagged(userID int64, entityType, flag string) ([]model.FamilyScore, error) {
	query := `SELECT ` + familyScoreCols + ` FROM family_scores WHERE user_id = ? AND ` + flag + ` = 1 AND deleted_at IS NULL`
	args := []any{userID}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s scores: %w", flag, err)
	}
	defer rows.Close()

	var scores []model.FamilyScore
	for rows.Next() {
		f, err := scanFamilyScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family score: %w", err)
		}
		scores = append(scores, *f)
	}
	return scores, rows.Err()
}
