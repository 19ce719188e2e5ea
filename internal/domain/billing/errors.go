package billing

import "errors"

// Domain errors for billing.
var (
	// Catalog errors
	ErrInvalidPassType    = errors.New("invalid pass type")
	ErrInvalidTopupType   = errors.New("invalid topup type")
	ErrInvalidService     = errors.New("invalid service")
	ErrInvalidPaymentKind = errors.New("invalid payment kind")
	ErrInvalidPayload     = errors.New("invalid payment payload")
	ErrInvalidCatalog     = errors.New("invalid catalog")

	// Storage errors
	ErrStorageUnavailable = errors.New("quota storage unavailable")
	ErrOptimisticConflict = errors.New("optimistic transaction retries exhausted")

	// Quota errors
	ErrInsufficientQuota = errors.New("insufficient quota")

	// Generation errors
	ErrGenerationFailed = errors.New("generation failed")
)
