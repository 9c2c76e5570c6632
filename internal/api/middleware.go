package api

import (
	"context"
	"net/http"

	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/chat"
)

type contextKey string

const identityKey contextKey = "identity"

func withIdentity(ctx context.Context, id chat.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller set by requireAuth.
func IdentityFrom(ctx context.Context) (chat.Identity, bool) {
	id, ok := ctx.Value(identityKey).(chat.Identity)
	return id, ok
}

// requireAuth rejects requests without a valid bearer token and passes the
// verified identity to next through the request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		token, err := auth.BearerToken(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		identity, err := h.tokens.Verify(token)
		if err != nil {
			h.log.Debug("Rejected API credential", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}
