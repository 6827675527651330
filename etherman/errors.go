package etherman

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is used when the object is not found
	ErrNotFound = errors.New("not found")
	// ErrPrivateKeyNotFound used when the provided sender does not have a private key registered to be used
	ErrPrivateKeyNotFound = errors.New("can't find sender private key to sign tx")

	// ErrGasRequiredExceedsAllowance gas required exceeds the allowance
	ErrGasRequiredExceedsAllowance = errors.New("gas required exceeds allowance")
	// ErrContentLengthTooLarge content length is too large
	ErrContentLengthTooLarge = errors.New("content length too large")
	// ErrTimestampMustBeInsideRange timestamp must be inside range
	ErrTimestampMustBeInsideRange = errors.New("timestamp must be inside range")
	// ErrInsufficientAllowance insufficient allowance
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrBatchAlreadyCommitted batch has already been committed on the rollup contract
	ErrBatchAlreadyCommitted = errors.New("batch already committed")
	// ErrBatchNotCommitted batch has not been committed yet
	ErrBatchNotCommitted = errors.New("batch not committed")

	errorsList = []error{
		ErrGasRequiredExceedsAllowance,
		ErrContentLengthTooLarge,
		ErrTimestampMustBeInsideRange,
		ErrInsufficientAllowance,
		ErrBatchAlreadyCommitted,
		ErrBatchNotCommitted,
	}
)

// TryParseError tries to match a node or contract error against the known
// errors list
func TryParseError(err error) (error, bool) {
	for _, knownErr := range errorsList {
		if strings.Contains(err.Error(), knownErr.Error()) {
			return knownErr, true
		}
	}

	return nil, false
}
