package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey int

const principalContextKey contextKey = iota

// ContextWithPrincipal returns a new context carrying the given principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal from the context, or nil if
// not present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// Middleware returns middleware that authenticates requests using a bearer
// token in the Authorization header. A missing header, a non-Bearer scheme,
// or any verification failure yields a 401 with no further detail. On
// success the principal is injected into the request context. The optional
// onVerify hooks are invoked with the outcome (used for metrics).
func Middleware(verifier TokenVerifier, onVerify ...func(ok bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				report(onVerify, false)
				writeUnauthorized(w)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil || principal == nil {
				slog.Info("unauthorised request received", "path", r.URL.Path)
				report(onVerify, false)
				writeUnauthorized(w)
				return
			}

			report(onVerify, true)
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func report(hooks []func(ok bool), ok bool) {
	for _, fn := range hooks {
		fn(ok)
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "unauthorized",
			Message: "missing or invalid bearer token",
		},
	})
}
