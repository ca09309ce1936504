package tracing

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/adminwatch/internal/apperror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Span attributes never carry contact details, tokens or free-text reasons.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"email":         {},
	"authorization": {},
	"token":         {},
	"reason":        {},
	"description":   {},
	"password":      {},
}

// SafeAttributes drops attributes that could leak personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := attribute.Key(strings.ToLower(string(attr.Key)))
		if _, blocked := blockedAttributeKeys[key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its category so raw messages stay out of spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	kind := apperror.Type(err)
	if kind == "" {
		return nil
	}
	return errors.New(kind)
}

// ExtractContext restores upstream trace context from carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// StartSpan starts an internal span on the adminwatch tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer("adminwatch").Start(ctx, name)
	span.SetAttributes(SafeAttributes(attrs...)...)
	return ctx, func(err error) {
		if safeErr := SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.End()
	}
}
