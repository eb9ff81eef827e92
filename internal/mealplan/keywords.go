package mealplan

import (
	"sort"
	"strings"

	"github.com/dukerupert/elevenses/internal/model"
)

// Keyword match tiers. Ordering matters more than the exact numbers: name
// matches outrank protein matches, protein outranks ingredients, and
// related-term-only matches rank last.
const (
	tierExactName      = 200
	tierNameSubstring  = 150
	tierAllWordsInName = 120
	tierNameIngredient = 110
	tierName           = 100
	tierProtein        = 80
	tierMultiIngred    = 70
	tierCuisineTag     = 60
	tierSingleIngred   = 50
	tierRelatedOnly    = 40

	wordBonus    = 5
	wordBonusCap = 15
)

// stopWords are stripped from requests before matching: articles and
// prepositions, generic meal words, weekday names, and first/last names of
// chefs people cite in requests ("Ina Garten's mac and cheese").
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "with": true,
	"and": true, "or": true, "for": true, "on": true, "in": true,
	"to": true, "my": true, "our": true, "some": true, "that": true,
	"this": true, "from": true, "at": true, "his": true, "her": true,

	"recipe": true, "recipes": true, "dinner": true, "meal": true,
	"meals": true, "food": true, "dish": true, "night": true,
	"something": true, "style": true, "homemade": true, "easy": true,
	"quick": true, "favorite": true, "tonight": true, "make": true,
	"want": true, "like": true, "have": true, "eat": true,

	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,

	"ina": true, "garten": true, "gordon": true, "ramsay": true,
	"jamie": true, "oliver": true, "martha": true, "stewart": true,
	"bobby": true, "flay": true, "rachael": true, "ray": true,
	"giada": true, "alton": true, "brown": true, "julia": true,
	"child": true,
}

// relatedTerms maps a food word to broader terms checked against a recipe's
// protein, cuisine, tags and name. Lets "salmon" find fish dishes and
// "tacos" find anything mexican.
var relatedTerms = map[string][]string{
	"salmon":     {"fish", "seafood"},
	"tuna":       {"fish", "seafood"},
	"tilapia":    {"fish", "seafood"},
	"shrimp":     {"seafood", "fish"},
	"taco":       {"mexican"},
	"tacos":      {"mexican"},
	"burrito":    {"mexican"},
	"burritos":   {"mexican"},
	"quesadilla": {"mexican"},
	"enchilada":  {"mexican"},
	"enchiladas": {"mexican"},
	"fajita":     {"mexican"},
	"fajitas":    {"mexican"},
	"pasta":      {"italian"},
	"spaghetti":  {"italian", "pasta"},
	"lasagna":    {"italian", "pasta"},
	"penne":      {"italian", "pasta"},
	"fettuccine": {"italian", "pasta"},
	"pizza":      {"italian"},
	"risotto":    {"italian"},
	"stir":       {"asian"},
	"stirfry":    {"asian"},
	"noodle":     {"asian"},
	"noodles":    {"asian"},
	"ramen":      {"japanese", "asian"},
	"sushi":      {"japanese"},
	"teriyaki":   {"japanese", "asian"},
	"curry":      {"indian"},
	"tikka":      {"indian"},
	"masala":     {"indian"},
	"gyro":       {"greek"},
	"gyros":      {"greek"},
	"burger":     {"beef"},
	"burgers":    {"beef"},
	"meatball":   {"beef"},
	"meatballs":  {"beef"},
	"wings":      {"chicken"},
	"bbq":        {"grilled", "barbecue"},
	"barbecue":   {"grilled", "bbq"},
	"kebab":      {"grilled"},
	"kebabs":     {"grilled"},
	"chili":      {"mexican", "beef"},
	"soup":       {"comfort"},
	"stew":       {"comfort"},
}

type scoredRecipe struct {
	recipe *model.Recipe
	score  int
}

// wordHits tracks which categories a single food word matched for one recipe.
type wordHits struct {
	name       bool
	protein    bool
	cuisineTag bool
	ingredient bool
	related    bool
}

func (h wordHits) any() bool {
	return h.name || h.protein || h.cuisineTag || h.ingredient || h.related
}

// resolveKeywords ranks catalog recipes against a free-text meal request.
// Zero-scoring recipes are excluded; results are sorted descending with
// catalog order breaking ties.
func resolveKeywords(request string, catalog []model.Recipe) []scoredRecipe {
	request = strings.ToLower(strings.TrimSpace(request))
	if request == "" {
		return nil
	}
	words := foodWords(request)

	var results []scoredRecipe
	for i := range catalog {
		r := &catalog[i]
		s := scoreKeywordMatch(request, words, r)
		if s > 0 {
			results = append(results, scoredRecipe{recipe: r, score: s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	return results
}

// foodWords strips stop words and possessive fragments from a lowercased
// request, leaving the words that plausibly name food.
func foodWords(request string) []string {
	var words []string
	for _, w := range strings.Fields(request) {
		w = strings.Trim(w, ".,!?\"()")
		w = strings.TrimSuffix(w, "'s")
		w = strings.TrimSuffix(w, "s'")
		w = strings.TrimSuffix(w, "'")
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

func scoreKeywordMatch(request string, words []string, r *model.Recipe) int {
	name := strings.ToLower(r.Name)

	// Whole-request tier short-circuits everything else.
	if name == request {
		return tierExactName
	}
	if strings.Contains(name, request) || strings.Contains(request, name) {
		return tierNameSubstring
	}

	if len(words) == 0 {
		return 0
	}

	hits := make([]wordHits, len(words))
	for i, w := range words {
		hits[i] = matchWord(w, r, name)
	}

	matched := 0
	var nameCount, proteinCount, cuisineTagCount, ingredientCount, relatedCount int
	for _, h := range hits {
		if !h.any() {
			continue
		}
		matched++
		if h.name {
			nameCount++
		}
		if h.protein {
			proteinCount++
		}
		if h.cuisineTag {
			cuisineTagCount++
		}
		if h.ingredient {
			ingredientCount++
		}
		if h.related {
			relatedCount++
		}
	}

	// At least half the food words must land somewhere.
	if matched*2 < len(words) {
		if len(words) == 1 {
			return directMatch(words[0], r, name)
		}
		return 0
	}

	var score int
	switch {
	case nameCount == len(words):
		score = tierAllWordsInName
	case nameCount > 0 && ingredientCount > 0:
		score = tierNameIngredient
	case nameCount > 0:
		score = tierName
	case proteinCount > 0:
		score = tierProtein
	case ingredientCount >= 2:
		score = tierMultiIngred
	case cuisineTagCount > 0:
		score = tierCuisineTag
	case ingredientCount == 1:
		score = tierSingleIngred
	case relatedCount > 0:
		score = tierRelatedOnly
	default:
		return 0
	}

	bonus := (matched - 1) * wordBonus
	if bonus > wordBonusCap {
		bonus = wordBonusCap
	}
	return score + bonus
}

// matchWord records hits for one food word across the match categories, each
// tracked independently.
func matchWord(w string, r *model.Recipe, name string) wordHits {
	var h wordHits
	h.name = strings.Contains(name, w)
	if r.Protein != "" {
		h.protein = strings.Contains(strings.ToLower(r.Protein), w)
	}
	if strings.Contains(strings.ToLower(r.Cuisine), w) {
		h.cuisineTag = true
	} else {
		for _, tag := range r.Tags {
			if strings.Contains(strings.ToLower(tag), w) {
				h.cuisineTag = true
				break
			}
		}
	}
	h.ingredient = ingredientMatches(r, w)
	for _, term := range relatedTerms[w] {
		if relatedTermMatches(term, r, name) {
			h.related = true
			break
		}
	}
	return h
}

func relatedTermMatches(term string, r *model.Recipe, name string) bool {
	if strings.Contains(name, term) {
		return true
	}
	if r.Protein != "" && strings.Contains(strings.ToLower(r.Protein), term) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Cuisine), term) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// directMatch is the single-word fallback: containment is checked in both
// directions so "burgers" still finds a recipe whose protein is "burger".
func directMatch(w string, r *model.Recipe, name string) int {
	contains := func(field string) bool {
		field = strings.ToLower(field)
		return field != "" && (strings.Contains(field, w) || strings.Contains(w, field))
	}

	if contains(r.Protein) {
		return tierProtein
	}
	if contains(r.Cuisine) {
		return tierCuisineTag
	}
	for _, tag := range r.Tags {
		if contains(tag) {
			return tierCuisineTag
		}
	}
	for _, ing := range r.Ingredients {
		if contains(ing.Name) {
			return tierSingleIngred
		}
	}
	for _, term := range relatedTerms[w] {
		if relatedTermMatches(term, r, name) {
			return tierRelatedOnly
		}
	}
	return 0
}
