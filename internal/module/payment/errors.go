package payment

import "errors"

// Module errors.
var (
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrDuplicateEvent          = errors.New("payment event already recorded")
	ErrEventInProgress         = errors.New("payment event is being processed")
	ErrPurchaseRejected        = errors.New("purchase was rejected")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrUnsupportedEvent        = errors.New("unsupported webhook event")
	ErrMissingPayload          = errors.New("payment has no purchase payload")
)
