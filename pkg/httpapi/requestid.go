package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// RequestID stamps every request with an X-Request-ID (generating one via
// google/uuid if the caller didn't send one) and stores it in the request
// context so downstream handlers and WriteErrorR can echo it as TraceID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), traceIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceIDFromContext returns the request's trace id, or "" if RequestID
// never ran for this request.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
