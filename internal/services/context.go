package services

import "context"

type contextKey string

const (
	scanIDKey    contextKey = "scan_id"
	artworkIDKey contextKey = "artwork_id"
	requestIDKey contextKey = "request_id"
)

// WithScanID annotates context with the background scan handle.
func WithScanID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, scanIDKey, id)
}

// ScanIDFromContext returns the scan handle if present.
func ScanIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(scanIDKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithArtworkID annotates context with the artwork being checked or merged.
func WithArtworkID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, artworkIDKey, id)
}

// ArtworkIDFromContext extracts the artwork identifier if present.
func ArtworkIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(artworkIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a request correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
