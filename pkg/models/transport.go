package models

// UploadResponse is the JSON body returned by the analysis server. Exactly one
// of the fields is expected to be set.
type UploadResponse struct {
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Outcome summarises what happened to one file of a batch
type Outcome struct {
	Index       int      `json:"index"`
	FileName    string   `json:"file_name"`
	Status      string   `json:"status"`
	Description []string `json:"description,omitempty"`
	Error       string   `json:"error,omitempty"`
	ErrorType   string   `json:"error_type,omitempty"`
}

// Outcome statuses
const (
	OutcomeRendered = "rendered"
	OutcomeErrored  = "errored"
	OutcomeRejected = "rejected"
	OutcomePending  = "pending"
)

// DropResponse is returned by the drop server for one batch
type DropResponse struct {
	BatchID  string    `json:"batch_id"`
	Accepted int       `json:"accepted"`
	Rejected int       `json:"rejected"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}
