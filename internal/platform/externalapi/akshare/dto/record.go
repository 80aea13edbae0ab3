// Package dto defines data transfer objects for the AKTools HTTP bridge responses.
package dto

// Records is the JSON array returned by /api/public/{function}; each element
// is keyed by the upstream column labels.
type Records []map[string]any

// ErrorResponse is the JSON object the bridge returns instead of an array when the call fails.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Message returns the most specific error text in the payload.
func (e ErrorResponse) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
