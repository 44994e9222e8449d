// Package apierror holds the JSON error envelopes of the ledger API. Clients
// branch on Code; Detail is for humans and never carries storage errors.
package apierror

// Codes name the ledger's failure classes.
const (
	CodeNotFound              = "not_found"
	CodeInsufficientInventory = "insufficient_inventory"
	CodeAllocationMismatch    = "allocation_mismatch"
	CodeInvalidInput          = "invalid_input"
	CodeValidation            = "validation_failed"
	CodeRateLimited           = "rate_limited"
	CodeUnavailable           = "unavailable"
	CodeInternal              = "internal"
)

// APIError is the envelope for every 4xx/5xx response.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// WithCode builds an envelope for one of the codes above.
func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// Internal is the only body a 500 ever carries.
func Internal() *APIError {
	return WithCode(CodeInternal, "internal server error")
}

// ValidationError lists the request fields that failed their binding rules,
// keyed by struct namespace (SellEvent.Quantity).
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidation, Detail: "request failed validation", Fields: fields}
}
