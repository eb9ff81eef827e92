package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

type RecipeStore struct {
	db *sql.DB
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

const recipeCols = `id, household_id, name, cuisine, protein, vegetarian, cook_time_minutes, difficulty, kid_friendly, makes_leftovers, allergens, tags, ingredients, created_at, updated_at`

func scanRecipe(scanner interface{ Scan(...any) error }) (*model.Recipe, error) {
	var r model.Recipe
	var allergens, tags, ingredients string
	err := scanner.Scan(
		&r.ID, &r.HouseholdID, &r.Name, &r.Cuisine, &r.Protein, &r.Vegetarian,
		&r.CookTimeMinutes, &r.Difficulty, &r.KidFriendly, &r.MakesLeftovers,
		&allergens, &tags, &ingredients, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(allergens), &r.Allergens); err != nil {
		return nil, fmt.Errorf("decode allergens: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	return &r, nil
}

func encodeRecipeLists(r *model.Recipe) (allergens, tags, ingredients string, err error) {
	allergens, err = encodeList(r.Allergens)
	if err != nil {
		return
	}
	tags, err = encodeList(r.Tags)
	if err != nil {
		return
	}
	ings := r.Ingredients
	if ings == nil {
		ings = []model.Ingredient{}
	}
	data, err := json.Marshal(ings)
	if err != nil {
		err = fmt.Errorf("encode ingredients: %w", err)
		return
	}
	ingredients = string(data)
	return
}

func (s *RecipeStore) Create(householdID int64, r *model.Recipe) (*model.Recipe, error) {
	allergens, tags, ingredients, err := encodeRecipeLists(r)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO recipes (household_id, name, cuisine, protein, vegetarian, cook_time_minutes, difficulty, kid_friendly, makes_leftovers, allergens, tags, ingredients)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		householdID, r.Name, r.Cuisine, r.Protein, r.Vegetarian, r.CookTimeMinutes,
		r.Difficulty, r.KidFriendly, r.MakesLeftovers, allergens, tags, ingredients,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, householdID)
}

func (s *RecipeStore) GetByID(id, householdID int64) (*model.Recipe, error) {
	row := s.db.QueryRow(
		`SELECT `+recipeCols+` FROM recipes WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return r, nil
}

// List returns the household's full recipe catalog in insertion order. The
// planner relies on this order for stable tie-breaking, so keep it
// deterministic.
func (s *RecipeStore) List(householdID int64) ([]model.Recipe, error) {
	rows, err := s.db.Query(
		`SELECT `+recipeCols+` FROM recipes WHERE household_id = ? ORDER BY id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

func (s *RecipeStore) Update(id, householdID int64, r *model.Recipe) (*model.Recipe, error) {
	allergens, tags, ingredients, err := encodeRecipeLists(r)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE recipes SET name = ?, cuisine = ?, protein = ?, vegetarian = ?, cook_time_minutes = ?, difficulty = ?, kid_friendly = ?, makes_leftovers = ?, allergens = ?, tags = ?, ingredients = ?
		 WHERE id = ? AND household_id = ?`,
		r.Name, r.Cuisine, r.Protein, r.Vegetarian, r.CookTimeMinutes, r.Difficulty,
		r.KidFriendly, r.MakesLeftovers, allergens, tags, ingredients,
		id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	return s.GetByID(id, householdID)
}

func (s *RecipeStore) Delete(id, householdID int64) error {
	_, err := s.db.Exec(`DELETE FROM recipes WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return nil
}
