package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "INVALID_TOKEN"
	ErrCodeTokenNotValidYet = "TOKEN_NOT_VALID"
	ErrCodeForbidden        = "FORBIDDEN"
)

// Business context error codes
const (
	ErrCodeContextLoading    = "CONTEXT_LOADING"
	ErrCodeNoAccess          = "NO_ACCESS"
	ErrCodeNoBusiness        = "NO_BUSINESS"
	ErrCodeBusinessNotFound  = "BUSINESS_NOT_FOUND"
	ErrCodeNotLinked         = "NOT_LINKED"
	ErrCodeInvalidAccessType = "INVALID_ACCESS_TYPE"
	ErrCodeInvalidLink       = "INVALID_LINK_REQUEST"
	ErrCodeLinkSelf          = "LINK_SELF"
	ErrCodeLinkExists        = "LINK_EXISTS"
	ErrCodeLinkPending       = "LINK_PENDING"
	ErrCodeRequestNotFound   = "REQUEST_NOT_FOUND"
	ErrCodeRequestForbidden  = "REQUEST_FORBIDDEN"
	ErrCodeRequestNotPending = "REQUEST_NOT_PENDING"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeTokenNotValidYet: http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,

	ErrCodeContextLoading:    http.StatusServiceUnavailable,
	ErrCodeNoAccess:          http.StatusForbidden,
	ErrCodeNoBusiness:        http.StatusForbidden,
	ErrCodeBusinessNotFound:  http.StatusNotFound,
	ErrCodeNotLinked:         http.StatusUnprocessableEntity,
	ErrCodeInvalidAccessType: http.StatusBadRequest,
	ErrCodeInvalidLink:       http.StatusBadRequest,
	ErrCodeLinkSelf:          http.StatusUnprocessableEntity,
	ErrCodeLinkExists:        http.StatusConflict,
	ErrCodeLinkPending:       http.StatusConflict,
	ErrCodeRequestNotFound:   http.StatusNotFound,
	ErrCodeRequestForbidden:  http.StatusForbidden,
	ErrCodeRequestNotPending: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status for code, or 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
