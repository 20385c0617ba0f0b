// Package routererr defines the router's error taxonomy.
//
// Every failure the core surfaces to a caller carries a Code from this
// package so the HTTP edge (or any other transport) can map it to a status
// without inspecting error strings.
package routererr

import "fmt"

// Code identifies a kind of failure per the error handling design.
type Code string

const (
	Unauthorized                 Code = "Unauthorized"
	SubscriptionRequired         Code = "SubscriptionRequired"
	AgentNotFound                Code = "AgentNotFound"
	AgentOrUserNotFound          Code = "AgentOrUserNotFound"
	NoValidPermits               Code = "NoValidPermits"
	InsufficientPermitBalance    Code = "InsufficientPermitBalance"
	InsufficientBalance          Code = "InsufficientBalance"
	InsufficientAllowance        Code = "InsufficientAllowance"
	InsufficientPermit2Allowance Code = "InsufficientPermit2Allowance"
	UnsupportedRoute             Code = "UnsupportedRoute"
	UnsupportedChain             Code = "UnsupportedChain"
	PermitStale                  Code = "PermitStale"
	AttestationFailed            Code = "AttestationFailed"
	ReceiptTimeout               Code = "ReceiptTimeout"
	ApiCallFailed                Code = "ApiCallFailed"
	ConfigurationError           Code = "ConfigurationError"
	ValidationError              Code = "ValidationError"
	InvalidParameters            Code = "InvalidParameters"
	InvalidJson                  Code = "InvalidJson"
	RateLimited                  Code = "RateLimited"
	InternalError                Code = "InternalError"
)

// httpStatus is the propagation mapping from the error handling design table.
var httpStatus = map[Code]int{
	Unauthorized:                 401,
	SubscriptionRequired:         403,
	AgentNotFound:                404,
	AgentOrUserNotFound:          404,
	NoValidPermits:               402,
	InsufficientPermitBalance:    402,
	InsufficientBalance:          402,
	InsufficientAllowance:        402,
	InsufficientPermit2Allowance: 402,
	UnsupportedRoute:             400,
	UnsupportedChain:             400,
	PermitStale:                  409,
	AttestationFailed:            502,
	ReceiptTimeout:               502,
	ApiCallFailed:                502,
	ConfigurationError:           500,
	ValidationError:              500,
	InvalidParameters:            400,
	InvalidJson:                  400,
	RateLimited:                  429,
	InternalError:                500,
}

// RouterError is the single error type produced by core components.
type RouterError struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func New(code Code, message string, details map[string]any) *RouterError {
	return &RouterError{Code: code, Message: message, Details: details}
}

// Wrap attaches a Code to an underlying error, preserving it for errors.Unwrap.
func Wrap(code Code, message string, cause error) *RouterError {
	return &RouterError{Code: code, Message: message, cause: cause}
}

func (e *RouterError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RouterError) Unwrap() error { return e.cause }

// HTTPStatus returns the status code §7 maps this error's Code to, or 500
// if the Code is unrecognized.
func (e *RouterError) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return 500
}
