package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// fakeProvider serves an openid-configuration document and a JWKS endpoint
// from a single httptest server.
type fakeProvider struct {
	server *httptest.Server
	keys   map[string]*rsa.PrivateKey
	active []string // kids currently published in the JWKS
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{keys: map[string]*rsa.PrivateKey{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"jwks_uri": p.server.URL + "/.well-known/jwks.json",
		})
	})
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=60")
		var keys []map[string]string
		for _, kid := range p.active {
			pub := p.keys[kid].PublicKey
			keys = append(keys, map[string]string{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) issuer() string {
	return p.server.URL + "/"
}

func (p *fakeProvider) addKey(t *testing.T, kid string, publish bool) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	p.keys[kid] = key
	if publish {
		p.active = append(p.active, kid)
	}
}

func (p *fakeProvider) publish(kids ...string) {
	p.active = kids
}

type tokenOpts struct {
	kid      string
	subject  string
	issuer   string
	audience string
	expires  time.Time
}

func (p *fakeProvider) sign(t *testing.T, opts tokenOpts) string {
	t.Helper()
	if opts.issuer == "" {
		opts.issuer = p.issuer()
	}
	if opts.expires.IsZero() {
		opts.expires = time.Now().Add(time.Minute)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   opts.subject,
		Issuer:    opts.issuer,
		Audience:  jwt.ClaimStrings{opts.audience},
		ExpiresAt: jwt.NewNumericDate(opts.expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	token.Header["kid"] = opts.kid
	signed, err := token.SignedString(p.keys[opts.kid])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestVerifier(t *testing.T, p *fakeProvider, audience string) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Issuer: p.issuer(), Audience: audience})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestNewVerifierRequiresIssuerAndAudience(t *testing.T) {
	if _, err := NewVerifier(Config{Audience: "aud"}); err == nil {
		t.Error("expected missing issuer to fail")
	}
	if _, err := NewVerifier(Config{Issuer: "https://issuer/"}); err == nil {
		t.Error("expected missing audience to fail")
	}
}

func TestVerifyValidToken(t *testing.T) {
	p := newFakeProvider(t)
	p.addKey(t, "kid-1", true)
	v := newTestVerifier(t, p, "shift-api")

	token := p.sign(t, tokenOpts{kid: "kid-1", subject: "auth0|user-a", audience: "shift-api"})

	principal, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.UserID != "auth0|user-a" {
		t.Errorf("expected subject auth0|user-a, got %q", principal.UserID)
	}
}

func TestVerifyRefreshesOnUnknownKid(t *testing.T) {
	p := newFakeProvider(t)
	p.addKey(t, "kid-1", true)
	v := newTestVerifier(t, p, "shift-api")

	// Prime the key cache with kid-1.
	token1 := p.sign(t, tokenOpts{kid: "kid-1", subject: "user-a", audience: "shift-api"})
	if _, err := v.Verify(context.Background(), token1); err != nil {
		t.Fatalf("verify token1: %v", err)
	}

	// Rotate to kid-2; the verifier must refresh the key set and succeed.
	p.addKey(t, "kid-2", false)
	p.publish("kid-2")
	token2 := p.sign(t, tokenOpts{kid: "kid-2", subject: "user-b", audience: "shift-api"})

	principal, err := v.Verify(context.Background(), token2)
	if err != nil {
		t.Fatalf("verify token2 after rotation: %v", err)
	}
	if principal.UserID != "user-b" {
		t.Errorf("expected subject user-b, got %q", principal.UserID)
	}
}

func TestVerifyRejections(t *testing.T) {
	p := newFakeProvider(t)
	p.addKey(t, "kid-1", true)
	p.addKey(t, "kid-unpublished", false)
	v := newTestVerifier(t, p, "shift-api")

	tests := []struct {
		name  string
		token string
	}{
		{"expired", p.sign(t, tokenOpts{kid: "kid-1", subject: "u", audience: "shift-api", expires: time.Now().Add(-2 * time.Minute)})},
		{"wrong audience", p.sign(t, tokenOpts{kid: "kid-1", subject: "u", audience: "someone-else"})},
		{"wrong issuer", p.sign(t, tokenOpts{kid: "kid-1", subject: "u", issuer: "https://evil.example.com/", audience: "shift-api"})},
		{"empty subject", p.sign(t, tokenOpts{kid: "kid-1", subject: "", audience: "shift-api"})},
		{"unknown kid after refresh", p.sign(t, tokenOpts{kid: "kid-unpublished", subject: "u", audience: "shift-api"})},
		{"malformed", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestVerifyRejectsNonRS256(t *testing.T) {
	p := newFakeProvider(t)
	p.addKey(t, "kid-1", true)
	v := newTestVerifier(t, p, "shift-api")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-a",
		Issuer:    p.issuer(),
		Audience:  jwt.ClaimStrings{"shift-api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Error("expected HS256 token to be rejected")
	}
}

// staticVerifier lets middleware tests run without a provider.
type staticVerifier struct {
	principal *Principal
}

func (s *staticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if s.principal == nil {
		return nil, errUnknownKey
	}
	return s.principal, nil
}

func TestMiddleware(t *testing.T) {
	var gotPrincipal *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		verifier   TokenVerifier
		authHeader string
		wantStatus int
		wantOK     bool
	}{
		{"missing header", &staticVerifier{principal: &Principal{UserID: "u"}}, "", http.StatusUnauthorized, false},
		{"wrong scheme", &staticVerifier{principal: &Principal{UserID: "u"}}, "Basic dXNlcjpwYXNz", http.StatusUnauthorized, false},
		{"verification failure", &staticVerifier{}, "Bearer bad-token", http.StatusUnauthorized, false},
		{"valid token", &staticVerifier{principal: &Principal{UserID: "auth0|u1"}}, "Bearer good-token", http.StatusOK, true},
		{"case-insensitive scheme", &staticVerifier{principal: &Principal{UserID: "auth0|u1"}}, "bearer good-token", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPrincipal = nil
			var hookOK *bool
			mw := Middleware(tt.verifier, func(ok bool) { hookOK = &ok })

			req := httptest.NewRequest(http.MethodGet, "/api/GetAllShifts", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if hookOK == nil || *hookOK != tt.wantOK {
				t.Errorf("expected verify hook ok=%v, got %v", tt.wantOK, hookOK)
			}
			if tt.wantOK && (gotPrincipal == nil || gotPrincipal.UserID == "") {
				t.Error("expected principal in request context")
			}
			if !tt.wantOK && gotPrincipal != nil {
				t.Error("expected no principal for rejected request")
			}
			if rec.Code == http.StatusUnauthorized {
				var body errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Error.Code != "unauthorized" {
					t.Errorf("expected error code unauthorized, got %q", body.Error.Code)
				}
			}
		})
	}
}
