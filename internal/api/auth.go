package api

import (
	"context"
	"net/http"
)

// userHeader carries the caller identity, set by the upstream auth proxy.
// The API trusts it as-is; token validation happens before traffic gets here.
const userHeader = "X-User-Id"

type contextKey string

const ctxUser contextKey = "user"

// requireUser rejects requests without a caller identity and injects the
// user id into the request context for handlers.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			s.writeError(w, http.StatusUnauthorized, "missing "+userHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUser, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFrom extracts the caller identity injected by requireUser.
func userFrom(ctx context.Context) string {
	userID, _ := ctx.Value(ctxUser).(string)
	return userID
}
