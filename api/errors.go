package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired marks an authoritative rejection of the active
// credentials. The session has already been cleared when this surfaces;
// callers should route to the login page.
var ErrSessionExpired = errors.New("session expired")

// ErrNoPendingCheckout is returned by CompleteCheckout when nothing was
// staged.
var ErrNoPendingCheckout = errors.New("no pending checkout")

// StatusError is any non-2xx response from the API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

func isAuthStatus(code int) bool {
	return code == 401 || code == 403
}
