package mealplan

// Meal modes for a cooking day.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// DaySchedule describes one day of the requested week.
type DaySchedule struct {
	Day             string           `json:"day"`
	IsCooking       bool             `json:"is_cooking"`
	MealMode        string           `json:"meal_mode,omitempty"`
	NumMains        int              `json:"num_mains,omitempty"`
	MainAssignments []MainAssignment `json:"main_assignments,omitempty"`
}

// MainAssignment maps one main slot of a multi-main day to the members it
// feeds.
type MainAssignment struct {
	MainIndex int     `json:"main_index"`
	MemberIDs []int64 `json:"member_ids"`
}

// LunchNeed describes one member's lunch requirement for a weekday.
type LunchNeed struct {
	Day         string `json:"day"`
	MemberID    int64  `json:"member_id"`
	NeedsLunch  bool   `json:"needs_lunch"`
	LeftoversOK bool   `json:"leftovers_ok"`
}

// MealRequest pins a free-text meal description to a day.
type MealRequest struct {
	Day         string `json:"day"`
	Description string `json:"description"`
}

// GenerateInput carries fully resolved parameters for one generation run.
// Callers fill defaults before calling Generate; the planner trusts the
// values as given.
type GenerateInput struct {
	Days              []DaySchedule
	LunchNeeds        []LunchNeed
	MealRequests      []MealRequest
	Locks             map[string]int64 // day -> recipe id
	WeekdayTimeBudget int              // minutes, 0 = unlimited
	WeekendTimeBudget int
	VegetarianRatio   int // 0-100, percent of the week's seven mains
}

// ParsedWeek is the structured result of natural-language schedule parsing.
type ParsedWeek struct {
	Days         []DaySchedule `json:"days"`
	MealRequests []MealRequest `json:"meal_requests"`
}
