package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func unauthorizedError() *DomainError {
	return domainError(http.StatusForbidden, "UNAUTHORIZED", "Not authorized", nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func parseError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "PARSE_ERROR", message, nil)
}

// storeError wraps a failed record store call. Not-found bubbles out as a
// 404; everything else is a generic store failure the user can retry with
// a manual refresh.
func storeError(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	return &DomainError{
		Status:  http.StatusBadGateway,
		Code:    "STORE_ERROR",
		Message: "Record store call failed",
	}
}
