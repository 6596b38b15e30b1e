package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		inbound  string
		wantEcho bool
	}{
		{"absent generates one", "", false},
		{"clean id echoed", "client-req_1.a", true},
		{"uuid-style id echoed", "0f1e2d3c4b5a69788796a5b4c3d2e1f0", true},
		{"oversized id regenerated", strings.Repeat("a", maxRequestIDLength+1), false},
		{"control characters regenerated", "abc\ndef", false},
		{"spaces regenerated", "abc def", false},
		{"exotic characters regenerated", "abc{}<>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = RequestIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.inbound != "" {
				req.Header.Set("X-Request-ID", tt.inbound)
			}
			rec := httptest.NewRecorder()
			requestIDMiddleware(next).ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("response must always carry an X-Request-ID")
			}
			if got != ctxID {
				t.Errorf("context id %q should match response header %q", ctxID, got)
			}

			if tt.wantEcho {
				if got != tt.inbound {
					t.Errorf("expected inbound id %q to be echoed, got %q", tt.inbound, got)
				}
				return
			}
			if got == tt.inbound {
				t.Errorf("unsafe inbound id %q must not be echoed", tt.inbound)
			}
			if len(got) > maxRequestIDLength {
				t.Errorf("generated id too long: %d", len(got))
			}
			if sanitizeRequestID(got) == "" {
				t.Errorf("generated id %q should satisfy its own character rules", got)
			}
		})
	}
}
