package auth

import (
	"net/http"
	"strings"
)

// RequireAdmin rejects requests without a valid bearer token. onDeny
// writes the rejection so the HTTP layer keeps its own error format.
func (s *Signer) RequireAdmin(onDeny func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				onDeny(w, r)
				return
			}
			claims, err := s.Parse(token)
			if err != nil {
				onDeny(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
