package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Middleware rejects requests without a valid bearer credential before any
// pipeline logic runs. The same middleware guards every protected route;
// there is one copy of this check in the whole service.
func Middleware(v *Verifier, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := v.FromRequestHeader(r.Header.Get("Authorization"))
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := err.Error()
	// Strip the sentinel prefix; the body carries only the human-readable part.
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
