package fault

import (
	"errors"
	"net/http"
)

// Shared error taxonomy for the payment core.
//
// Packages wrap these sentinels with fmt.Errorf("...: %w", ...) so callers can
// classify without depending on package-specific error values. The HTTP layer
// maps the taxonomy to status codes in one place.
var (
	// ErrValidation: bad input shape or values. Surfaced to the caller.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: duplicate initiation or an invalid state transition.
	// The operation is a no-op.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds: a wallet debit would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound: missing Payment/Order/Payout/Wallet.
	ErrNotFound = errors.New("not found")

	// ErrGateway: the external processor call failed. Never partially applied
	// locally; callers may retry the whole operation.
	ErrGateway = errors.New("gateway error")

	// ErrIntegrity: an internal invariant failed. Logged as fatal by the
	// caller; the operation is aborted, never silently continued.
	ErrIntegrity = errors.New("integrity violation")
)

// HTTPStatus maps a taxonomy error to an HTTP status code.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
