// Package errs holds the error taxonomy shared by the ledger, the settlement
// engine and the HTTP layer.
package errs

import "errors"

var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrInvalidToken             = errors.New("invalid token")
	ErrUnsupportedToken         = errors.New("unsupported token")
	ErrUnsupportedChain         = errors.New("unsupported chain")
	ErrUpstreamPriceUnavailable = errors.New("upstream price unavailable")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidAmount            = errors.New("amount must be a positive decimal")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrConcurrentUpdate         = errors.New("concurrent update")
	ErrInvalidInput             = errors.New("invalid input")
)
