package checkout

import "errors"

var (
	// ErrSubmitInFlight: a submission is already in progress; no mutation
	// or second submit is accepted until it resolves.
	ErrSubmitInFlight = errors.New("submission in flight")

	// ErrSessionClosed: the session already succeeded; it cannot be
	// edited or resubmitted.
	ErrSessionClosed = errors.New("checkout session closed")

	// ErrCartEmpty: submission attempted with no lines in the cart.
	ErrCartEmpty = errors.New("cart is empty")

	// ErrSubmissionFailed: the external order-draft call failed; the
	// cart is preserved and the session is editable again.
	ErrSubmissionFailed = errors.New("order submission failed")

	// ErrValidationFailed: customer fields did not pass validation; no
	// external call was made.
	ErrValidationFailed = errors.New("validation failed")
)
