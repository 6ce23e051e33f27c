package types

// SuccessEnvelope wraps successful JSON responses.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire representation of a failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps failed JSON responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
