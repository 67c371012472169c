package types

import "encoding/json"

// Market is the subset of the Gamma market document the tracker needs.
// ClobTokenIDs is kept raw because the API returns it either as a JSON array
// or as a string holding an encoded array or a comma-separated list.
type Market struct {
	Question     string          `json:"question"`
	ConditionID  string          `json:"conditionId"`
	Slug         string          `json:"slug"`
	ClobTokenIDs json.RawMessage `json:"clobTokenIds"`
}
