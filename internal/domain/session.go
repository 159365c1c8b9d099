package domain

import "encoding/json"

// Session is one planning cycle for a household.
type Session struct {
	HouseholdKey     string
	SessionKey       string
	StartIngredients []string
	// MenuSelection is the candidate menu list as returned by the recommender.
	MenuSelection json.RawMessage
	MatchedMenus  []string
	CreatedAt     string
}
