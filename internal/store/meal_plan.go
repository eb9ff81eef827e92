package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

type MealPlanStore struct {
	db *sql.DB
}

func NewMealPlanStore(db *sql.DB) *MealPlanStore {
	return &MealPlanStore{db: db}
}

const mealPlanCols = `id, household_id, week_start, variant, created_at`

func scanMealPlan(scanner interface{ Scan(...any) error }) (*model.MealPlan, error) {
	var p model.MealPlan
	err := scanner.Scan(&p.ID, &p.HouseholdID, &p.WeekStart, &p.Variant, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Replace stores a freshly generated item list for the plan key, creating
// the plan row if needed and deleting any previous items, all in one
// transaction. Readers never observe a half-replaced plan; on error the
// previous committed items remain intact. Items must be ordered so that any
// ParentIndex refers to an earlier element.
func (s *MealPlanStore) Replace(householdID int64, weekStart string, variant int, items []model.PlannedMealItem) (*model.MealPlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var planID int64
	err = tx.QueryRow(
		`SELECT id FROM meal_plans WHERE household_id = ? AND week_start = ? AND variant = ?`,
		householdID, weekStart, variant,
	).Scan(&planID)
	if err == sql.ErrNoRows {
		result, err := tx.Exec(
			`INSERT INTO meal_plans (household_id, week_start, variant) VALUES (?, ?, ?)`,
			householdID, weekStart, variant,
		)
		if err != nil {
			return nil, fmt.Errorf("insert meal plan: %w", err)
		}
		planID, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("find meal plan: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM meal_plan_items WHERE meal_plan_id = ?`, planID); err != nil {
		return nil, fmt.Errorf("delete plan items: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO meal_plan_items (meal_plan_id, day, meal_type, recipe_id, main_index, member_ids, parent_item_id, is_custom, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()

	// In-memory parent references become row ids as we insert; parents always
	// precede their children in the generated list.
	rowIDs := make([]int64, len(items))
	for i, item := range items {
		var parentID any
		if item.ParentIndex != nil {
			if *item.ParentIndex < 0 || *item.ParentIndex >= i {
				return nil, fmt.Errorf("item %d: parent index %d out of range", i, *item.ParentIndex)
			}
			parentID = rowIDs[*item.ParentIndex]
		}

		var memberIDs any
		if item.MemberIDs != nil {
			data, err := json.Marshal(item.MemberIDs)
			if err != nil {
				return nil, fmt.Errorf("encode member ids: %w", err)
			}
			memberIDs = string(data)
		}

		var recipeID any
		if item.RecipeID != nil {
			recipeID = *item.RecipeID
		}
		var mainIndex any
		if item.MainIndex != nil {
			mainIndex = *item.MainIndex
		}

		result, err := stmt.Exec(planID, item.Day, item.MealType, recipeID, mainIndex, memberIDs, parentID, item.IsCustom, item.Notes)
		if err != nil {
			return nil, fmt.Errorf("insert plan item: %w", err)
		}
		rowIDs[i], err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace: %w", err)
	}
	return s.GetByID(planID, householdID)
}

func (s *MealPlanStore) GetByID(id, householdID int64) (*model.MealPlan, error) {
	row := s.db.QueryRow(
		`SELECT `+mealPlanCols+` FROM meal_plans WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	p, err := scanMealPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	return p, nil
}

func (s *MealPlanStore) GetByKey(householdID int64, weekStart string, variant int) (*model.MealPlan, error) {
	row := s.db.QueryRow(
		`SELECT `+mealPlanCols+` FROM meal_plans WHERE household_id = ? AND week_start = ? AND variant = ?`,
		householdID, weekStart, variant,
	)
	p, err := scanMealPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal plan by key: %w", err)
	}
	return p, nil
}

func (s *MealPlanStore) List(householdID int64) ([]model.MealPlan, error) {
	rows, err := s.db.Query(
		`SELECT `+mealPlanCols+` FROM meal_plans WHERE household_id = ? ORDER BY week_start DESC, variant`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list meal plans: %w", err)
	}
	defer rows.Close()

	var plans []model.MealPlan
	for rows.Next() {
		p, err := scanMealPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// ListItems returns a plan's items in generation order, each joined with its
// recipe's display attributes so the caller can render without extra
// lookups. Custom items (planner-named sides) have no recipe row.
func (s *MealPlanStore) ListItems(planID int64) ([]model.PlannedMealItem, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.meal_plan_id, i.day, i.meal_type, i.recipe_id, i.main_index, i.member_ids, i.parent_item_id, i.is_custom, i.notes,
		        COALESCE(r.name, ''), COALESCE(r.cuisine, ''), COALESCE(r.vegetarian, 0), COALESCE(r.cook_time_minutes, 0), COALESCE(r.makes_leftovers, 0), COALESCE(r.kid_friendly, 0)
		 FROM meal_plan_items i
		 LEFT JOIN recipes r ON r.id = i.recipe_id
		 WHERE i.meal_plan_id = ?
		 ORDER BY i.id`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan items: %w", err)
	}
	defer rows.Close()

	var items []model.PlannedMealItem
	for rows.Next() {
		var item model.PlannedMealItem
		var recipeID, parentItemID sql.NullInt64
		var mainIndex sql.NullInt64
		var memberIDs sql.NullString
		err := rows.Scan(
			&item.ID, &item.MealPlanID, &item.Day, &item.MealType,
			&recipeID, &mainIndex, &memberIDs, &parentItemID, &item.IsCustom, &item.Notes,
			&item.RecipeName, &item.RecipeCuisine, &item.Vegetarian,
			&item.CookTimeMinutes, &item.MakesLeftovers, &item.KidFriendly,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plan item: %w", err)
		}
		if recipeID.Valid {
			item.RecipeID = &recipeID.Int64
		}
		if mainIndex.Valid {
			idx := int(mainIndex.Int64)
			item.MainIndex = &idx
		}
		if parentItemID.Valid {
			item.ParentItemID = &parentItemID.Int64
		}
		if memberIDs.Valid {
			if err := json.Unmarshal([]byte(memberIDs.String), &item.MemberIDs); err != nil {
				return nil, fmt.Errorf("decode member ids: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *MealPlanStore) Delete(id, householdID int64) error {
	_, err := s.db.Exec(`DELETE FROM meal_plans WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete meal plan: %w", err)
	}
	return nil
}
