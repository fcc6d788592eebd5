package model

// Result status values shared by read and batch responses.
const (
	ResultOK      = "OK"
	ResultKO      = "KO"
	ResultPartial = "PARTIAL"
)

// ReadResponse is the envelope returned by query endpoints. The executed SQL
// text is never included.
type ReadResponse struct {
	Result             string                   `json:"Result"`
	ProvidedParameters string                   `json:"ProvidedParameters"`
	Records            []map[string]interface{} `json:"Records"`
	Reason             string                   `json:"Reason,omitempty"`
}

// BatchResponse is the envelope returned by batch upsert endpoints. Counts
// and per-record error details are present even when every record failed.
type BatchResponse struct {
	Result       string   `json:"Result"`
	Inserted     int      `json:"Inserted"`
	Updated      int      `json:"Updated"`
	Errors       int      `json:"Errors"`
	ErrorDetails []string `json:"ErrorDetails"`
	Message      string   `json:"Message"`
}

// ErrorResponse is the standard envelope for transport-level errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
