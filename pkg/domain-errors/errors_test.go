package domainerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "studbook/pkg/domain-errors"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := dErrors.New(dErrors.CodeNotFound, "party missing")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		inner := dErrors.New(dErrors.CodeInvariantViolation, "billed party is not a buyer")
		wrapped := fmt.Errorf("create invoice: %w", inner)
		assert.True(t, dErrors.HasCode(wrapped, dErrors.CodeInvariantViolation))
	})

	t.Run("nil and plain errors carry no code", func(t *testing.T) {
		assert.False(t, dErrors.HasCode(nil, dErrors.CodeInternal))
		assert.False(t, dErrors.HasCode(errors.New("plain"), dErrors.CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("preserves the cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := dErrors.Wrap(cause, dErrors.CodeInternal, "resolve failed")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("wrapping nil returns nil", func(t *testing.T) {
		assert.NoError(t, dErrors.Wrap(nil, dErrors.CodeInternal, "noop"))
	})
}

func TestReason(t *testing.T) {
	err := dErrors.NewWithReason(dErrors.CodeInvariantViolation, "NOT_A_GROUP_BUYER", "billed party is not a buyer of the group")
	assert.Equal(t, "NOT_A_GROUP_BUYER", dErrors.Reason(err))
	assert.Equal(t, "", dErrors.Reason(errors.New("plain")))
}
