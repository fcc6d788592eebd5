package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key under which the request ID travels.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader carries the correlation ID. Conduit echoes it on every
// response so batch callers can tie per-record ErrorDetails back to the
// submission that produced them.
const RequestIDHeader = "X-Request-ID"

// maxClientRequestID caps caller-supplied correlation IDs. Anything longer
// would repeat on every log line the request touches.
const maxClientRequestID = 64

// RequestID assigns a correlation ID to each request: the caller's
// RequestIDHeader value when present (truncated to maxClientRequestID),
// otherwise a generated UUIDv7, whose time-ordered prefix keeps log storage
// roughly sorted by arrival.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		switch {
		case id == "":
			id = uuid.Must(uuid.NewV7()).String()
		case len(id) > maxClientRequestID:
			id = id[:maxClientRequestID]
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request's correlation ID, or "" outside a
// request context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
