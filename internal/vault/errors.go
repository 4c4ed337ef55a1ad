package vault

import "errors"

// Custody failure taxonomy. Every operation fails with exactly one of
// these, wrapped with call context; callers discriminate with errors.Is.
// A failed operation leaves no state change behind.
var (
	ErrUnauthorized             = errors.New("unauthorized: caller is not the owner")
	ErrPaused                   = errors.New("vault is paused")
	ErrReentrantCall            = errors.New("reentrant call")
	ErrInsufficientFunds        = errors.New("insufficient native balance")
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")
	ErrInvalidRecipient         = errors.New("invalid recipient")
	ErrInvalidToken             = errors.New("invalid token id")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrTokenNotSupported        = errors.New("token not supported")
	ErrLengthMismatch           = errors.New("token and amount lists differ in length")
	ErrQuotaExceeded            = errors.New("daily quota exceeded")
	ErrTransferFailed           = errors.New("native transfer failed")
	ErrTokenTransferFailed      = errors.New("token transfer failed")
	ErrNothingToRecover         = errors.New("nothing to recover")
)

// Reason returns the wire identifier for a custody failure, used in API
// responses and metric labels. Unknown errors map to "internal".
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientTokenBalance):
		return "insufficient_token_balance"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrTokenNotSupported):
		return "token_not_supported"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrTokenTransferFailed):
		return "token_transfer_failed"
	case errors.Is(err, ErrNothingToRecover):
		return "nothing_to_recover"
	default:
		return "internal"
	}
}
