package types

// SuccessEnvelope wraps every successful response body so clients can
// parse "data" uniformly.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failed request. Code is stable and
// machine-readable; Message is safe to show to a caller.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
