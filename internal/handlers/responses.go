package handlers

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in ErrorResponse.
const (
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal_error"
	CodeNotFound         = "not_found"
	CodeBadRequest       = "bad_request"
)
