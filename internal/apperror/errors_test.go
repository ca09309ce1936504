package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndType(t *testing.T) {
	err := fmt.Errorf("%w: reason_required", ErrValidationFailed)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "reason_required", Code(err))
	assert.Equal(t, "validation_error", Type(err))

	wrapped := fmt.Errorf("gateway: %w", err)
	assert.Equal(t, "reason_required", Code(wrapped))
	assert.Equal(t, "validation_error", Type(wrapped))

	assert.Equal(t, "internal_error", Type(errors.New("boom")))
	assert.Equal(t, "", Type(nil))
	assert.Equal(t, "conflict", Type(fmt.Errorf("%w: stale_write", ErrConflict)))
}
