package gateway

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/teachmate/internal/account"
)

var (
	// ErrUnauthorized is returned when the backend answers 401 on an
	// authenticated call. The unauthorized handler has already run.
	ErrUnauthorized = account.ErrSessionExpired

	// ErrRejected is returned when the backend answers 2xx with success=false.
	ErrRejected = errors.New("request rejected by backend")

	// ErrInvalidPlan is returned when a generated lesson plan does not match
	// the expected shape.
	ErrInvalidPlan = errors.New("invalid lesson plan")
)

// APIError is a non-2xx response other than an authenticated 401.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Body)
}
