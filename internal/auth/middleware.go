package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RequireToken rejects requests without a valid bearer token. Authenticated requests carry
// APIActor in their context.
func RequireToken(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			if err := svc.Authenticate(bearerToken(r)); err != nil {
				if logger != nil {
					logger.Warn("api token rejected", slog.String("path", r.URL.Path))
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="odyssey-pos"`)
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), APIActor)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
