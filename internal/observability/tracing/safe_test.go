package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/adminwatch/internal/apperror"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("email", "ops@example.com"),
		attribute.String("Reason", "fraud"),
		attribute.String("action", "suspend"),
	)
	assert.Equal(t, []attribute.KeyValue{attribute.String("action", "suspend")}, attrs)
}

func TestSafeErrorKeepsOnlyCategory(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	err := SafeError(fmt.Errorf("%w: rule_in_use", apperror.ErrConflict))
	assert.EqualError(t, err, "conflict")

	err = SafeError(errors.New("dial tcp 10.0.0.1: secret"))
	assert.EqualError(t, err, "internal_error")
}
