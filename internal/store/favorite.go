package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

// Add marks a recipe as a member favorite. Both rows must belong to the
// household; adding twice is a no-op.
func (s *FavoriteStore) Add(householdID, memberID, recipeID int64) error {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*)
		 FROM family_members m, recipes r
		 WHERE m.id = ? AND m.household_id = ? AND r.id = ? AND r.household_id = ?`,
		memberID, householdID, recipeID, householdID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check favorite ownership: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("member %d or recipe %d not in household", memberID, recipeID)
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO favorites (member_id, recipe_id) VALUES (?, ?)`,
		memberID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (s *FavoriteStore) Remove(householdID, memberID, recipeID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM favorites
		 WHERE member_id = ? AND recipe_id = ?
		   AND member_id IN (SELECT id FROM family_members WHERE household_id = ?)`,
		memberID, recipeID, householdID,
	)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (s *FavoriteStore) ListByMember(householdID, memberID int64) ([]model.Favorite, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.member_id, f.recipe_id, f.created_at, r.name
		 FROM favorites f
		 JOIN family_members m ON m.id = f.member_id
		 JOIN recipes r ON r.id = f.recipe_id
		 WHERE f.member_id = ? AND m.household_id = ?
		 ORDER BY r.name`,
		memberID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.ID, &f.MemberID, &f.RecipeID, &f.CreatedAt, &f.RecipeName); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}
