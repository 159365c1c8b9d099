package domain

import "encoding/json"

// Household is the tenancy unit. The persona documents are passed through to
// the discussion engine unmodified.
type Household struct {
	HouseholdKey string
	Name         string
	People       json.RawMessage
	Chef         json.RawMessage
	Consultants  json.RawMessage
}
