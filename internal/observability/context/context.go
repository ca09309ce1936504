package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type countryKey struct{}
type clientKey struct{}

type actor struct {
	Type string
	ID   string
}

type client struct {
	IPAddress string
	UserAgent string
}

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request correlation id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithActor stores the acting principal (admin, system).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		Type: strings.TrimSpace(actorType),
		ID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the acting principal type and id.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey{}).(actor); ok {
		return value.Type, value.ID
	}
	return "", ""
}

// WithCountry stores the country the current unit of work is about.
func WithCountry(ctx context.Context, countryCode string) context.Context {
	return context.WithValue(ctx, countryKey{}, strings.ToUpper(strings.TrimSpace(countryCode)))
}

// CountryFromContext returns the country code, if any.
func CountryFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(countryKey{}).(string); ok {
		return value
	}
	return ""
}

// WithClient stores caller network metadata for audit entries.
func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{
		IPAddress: strings.TrimSpace(ipAddress),
		UserAgent: strings.TrimSpace(userAgent),
	})
}

// ClientFromContext returns the caller ip address and user agent.
func ClientFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(clientKey{}).(client); ok {
		return value.IPAddress, value.UserAgent
	}
	return "", ""
}
