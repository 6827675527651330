package etherman

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryParseWithExactMatch(t *testing.T) {
	expected := ErrBatchNotCommitted
	smartContractErr := expected

	actualErr, ok := TryParseError(smartContractErr)

	assert.ErrorIs(t, actualErr, expected)
	assert.True(t, ok)
}

func TestTryParseWithContains(t *testing.T) {
	for _, expected := range []error{
		ErrBatchAlreadyCommitted,
		ErrBatchNotCommitted,
		ErrTimestampMustBeInsideRange,
	} {
		smartContractErr := fmt.Errorf(" execution reverted: ValidatorTimelock::commitBatches: %w", expected)

		actualErr, ok := TryParseError(smartContractErr)

		assert.ErrorIs(t, actualErr, expected)
		assert.True(t, ok)
	}
}

func TestTryParseWithNonExistingErr(t *testing.T) {
	smartContractErr := fmt.Errorf("some non-existing err")

	actualErr, ok := TryParseError(smartContractErr)

	assert.Nil(t, actualErr)
	assert.False(t, ok)
}
