package apperrors

import "errors"

// Standardized simulator errors
var (
	ErrUnknownProduct      = errors.New("unknown product")
	ErrUnknownDeployTarget = errors.New("unknown deploy target")
	ErrUnknownBorrowAsset  = errors.New("unknown borrow asset")
	ErrNotCollateral       = errors.New("product is not collateral eligible")
	ErrAboveLimit          = errors.New("value above configured limit")
	ErrWeightsNotFull      = errors.New("selected weights do not total 100")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrRatesUnavailable    = errors.New("rates unavailable")
	ErrUpstreamMalformed   = errors.New("malformed upstream response")
	ErrNotFound            = errors.New("not found")
	ErrChecksumMismatch    = errors.New("checksum verification failed")
)
