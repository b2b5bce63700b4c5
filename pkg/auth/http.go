package auth

import (
	"encoding/json"
	"net/http"

	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// HTTPMiddleware returns an HTTP middleware that authenticates every
// request with [Authenticator.Authenticate].
//
// On success the [Principal] is stored in the request context and the
// next handler runs. On failure the middleware writes the JSON error body
// and the next handler is not called:
//
//	{"error":"UNAUTHORIZED","message":"Invalid token"}
//
// Example:
//
//	r := chi.NewRouter()
//	r.With(authn.HTTPMiddleware()).Get("/v1/me", handleMe)
func (a *Authenticator) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, authErr := a.Authenticate(r.Context(), r.Header.Get(HeaderAuthorization))
			if authErr != nil {
				WriteError(w, authErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// WriteError writes err as a JSON error response with the status derived
// from its code. 401 responses carry a Bearer challenge.
func WriteError(w http.ResponseWriter, err *sserr.Error) {
	status := err.HTTPStatus()
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err.Response())
}
