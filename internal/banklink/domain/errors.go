package domain

import "errors"

var (
	ErrUnknownBank      = errors.New("unknown_bank")
	ErrMethodNotAllowed = errors.New("method_not_allowed")

	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrPaymentFinalized  = errors.New("payment_already_finalized")
	ErrUnknownDecision   = errors.New("unknown_decision")
	ErrMerchantGone      = errors.New("merchant_no_longer_exists")
	ErrSampleUnsupported = errors.New("sample_request_not_supported")

	// ErrSigningFailed wraps crypto backend failures; always fatal for the
	// current operation.
	ErrSigningFailed = errors.New("signing_failed")
)
