package store

import (
	"database/sql"
	"fmt"

	"github.com/pantrylabs/pantrypoints/internal/model"
)

// ContributionTypeStore manages the lookup table of contribution kinds and
// their point values. The ledger consults it once per approval; the value in
// effect at that moment is frozen into the contribution row.
type ContributionTypeStore struct {
	db *sql.DB
}

func NewContributionTypeStore(db *sql.DB) *ContributionTypeStore {
	return &ContributionTypeStore{db: db}
}

func scanContributionType(scanner interface{ Scan(...any) error }) (*model.ContributionType, error) {
	var t model.ContributionType
	var autoApprove, active int

	err := scanner.Scan(&t.ID, &t.Name, &t.Description, &t.Points, &autoApprove, &active, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.AutoApprove = autoApprove != 0
	t.Active = active != 0
	return &t, nil
}

const contributionTypeCols = `id, name, description, points, auto_approve, active, created_at`

func (s *ContributionTypeStore) Create(name, description string, points int, autoApprove, active bool) (*model.ContributionType, error) {
	result, err := s.db.Exec(
		`INSERT INTO contribution_types (name, description, points, auto_approve, active) VALUES (?, ?, ?, ?, ?)`,
		name, description, points, boolToInt(autoApprove), boolToInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert contribution type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ContributionTypeStore) GetByID(id int64) (*model.ContributionType, error) {
	row := s.db.QueryRow(`SELECT `+contributionTypeCols+` FROM contribution_types WHERE id = ?`, id)
	t, err := scanContributionType(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution type: %w", err)
	}
	return t, nil
}

// List returns all contribution types, active first, then by name.
func (s *ContributionTypeStore) List() ([]model.ContributionType, error) {
	rows, err := s.db.Query(`SELECT ` + contributionTypeCols + ` FROM contribution_types ORDER BY active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list contribution types: %w", err)
	}
	defer rows.Close()

	var types []model.ContributionType
	for rows.Next() {
		t, err := scanContributionType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution type: %w", err)
		}
		types = append(types, *t)
	}
	return types, rows.Err()
}

func (s *ContributionTypeStore) Update(id int64, name, description string, points int, autoApprove, active bool) (*model.ContributionType, error) {
	_, err := s.db.Exec(
		`UPDATE contribution_types SET name = ?, description = ?, points = ?, auto_approve = ?, active = ? WHERE id = ?`,
		name, description, points, boolToInt(autoApprove), boolToInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update contribution type: %w", err)
	}
	return s.GetByID(id)
}

func (s *ContributionTypeStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM contribution_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contribution type: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
