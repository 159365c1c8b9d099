package domain

import "encoding/json"

// ResultStatus is the lifecycle state of a discussion task's outcome.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultCompleted ResultStatus = "completed"
)

// MenuResult tracks one discussion task for a (household, session) pair.
// Result is set only once Status is ResultCompleted.
type MenuResult struct {
	HouseholdKey string
	SessionKey   string
	TaskID       string
	Status       ResultStatus
	Result       json.RawMessage
	CreatedAt    string
	CompletedAt  string
}

// Completed reports whether the discussion outcome has been recorded.
func (r MenuResult) Completed() bool {
	return r.Status == ResultCompleted && len(r.Result) > 0
}
