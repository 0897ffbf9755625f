package pkgrouter

import (
	"context"
	"net/http"
)

type routeKey struct{}

// withRoute records the registered pattern so middleware can log it
// instead of the raw path.
func withRoute(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), routeKey{}, pattern)))
	})
}

// RoutePattern returns the pattern the request was matched against, if any.
func RoutePattern(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey{}).(string); ok {
		return v
	}
	return ""
}
