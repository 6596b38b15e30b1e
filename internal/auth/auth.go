package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultLeeway      = 30 * time.Second
	defaultKeyCacheTTL = 5 * time.Minute
)

var errUnknownKey = errors.New("unknown token signing key")

// Principal is the verified caller of a request. UserID is the token's
// subject claim and is used as the partition key for all stored data.
type Principal struct {
	UserID string
}

// TokenVerifier validates a raw bearer token and resolves the principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Config configures bearer-token verification against an OpenID Connect
// identity provider.
type Config struct {
	Issuer     string // provider base URL, with trailing slash
	Audience   string
	Leeway     time.Duration
	HTTPClient *http.Client
}

// Verifier checks RS256 bearer tokens against the provider's published
// signing keys. Keys are discovered through the issuer's
// openid-configuration document and cached by kid; a token signed with an
// unknown kid forces one refresh of the key set before verification fails.
type Verifier struct {
	issuer     string
	audience   string
	leeway     time.Duration
	httpClient *http.Client

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	keysExpire time.Time
}

// NewVerifier creates a token verifier. It does not contact the provider;
// the key set is fetched lazily on first use.
func NewVerifier(cfg Config) (*Verifier, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("token verifier requires an issuer")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errors.New("token verifier requires an audience")
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	return &Verifier{
		issuer:     issuer,
		audience:   audience,
		leeway:     leeway,
		httpClient: client,
	}, nil
}

// Verify validates the token and returns its principal. Any verification
// failure (bad signature, expiry, wrong issuer or audience, malformed token)
// is reported as an error; the caller treats all of them as unauthenticated.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, errors.New("token subject missing")
	}
	return &Principal{UserID: subject}, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (jwt.RegisteredClaims, error) {
	if v.keysExpired() {
		if err := v.refreshKeys(ctx); err != nil {
			return jwt.RegisteredClaims{}, err
		}
	}

	claims, err := v.parse(token)
	if !errors.Is(err, errUnknownKey) {
		return claims, err
	}

	// The provider may have rotated its signing keys. Refresh the key set
	// once and retry exactly once.
	if refreshErr := v.refreshKeys(ctx); refreshErr != nil {
		return claims, refreshErr
	}
	return v.parse(token)
}

func (v *Verifier) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	keys := v.copyKeys()
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errUnknownKey
		}
		key, ok := keys[kid]
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, errUnknownKey) {
			return claims, errUnknownKey
		}
		return claims, err
	}
	if !parsed.Valid {
		return claims, errors.New("invalid token")
	}
	return claims, nil
}

func (v *Verifier) keysExpired() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keys == nil || time.Now().UTC().After(v.keysExpire)
}

func (v *Verifier) copyKeys() map[string]*rsa.PublicKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]*rsa.PublicKey, len(v.keys))
	for kid, key := range v.keys {
		out[kid] = key
	}
	return out
}

// refreshKeys resolves the provider's openid-configuration document and
// replaces the cached key set with the keys published at its jwks_uri.
func (v *Verifier) refreshKeys(ctx context.Context) error {
	jwksURI, err := v.discoverJWKSURI(ctx)
	if err != nil {
		return err
	}

	var payload struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	resp, err := v.get(ctx, jwksURI)
	if err != nil {
		return fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching jwks: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(payload.Keys))
	for _, k := range payload.Keys {
		if !strings.EqualFold(strings.TrimSpace(k.Kty), "RSA") {
			continue
		}
		kid := strings.TrimSpace(k.Kid)
		if kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks contains no usable rsa keys")
	}

	ttl := parseCacheMaxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultKeyCacheTTL
	}

	v.mu.Lock()
	v.keys = keys
	v.keysExpire = time.Now().UTC().Add(ttl)
	v.mu.Unlock()
	return nil
}

func (v *Verifier) discoverJWKSURI(ctx context.Context) (string, error) {
	resp, err := v.get(ctx, v.issuer+".well-known/openid-configuration")
	if err != nil {
		return "", fmt.Errorf("fetching openid configuration: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching openid configuration: status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decoding openid configuration: %w", err)
	}
	if strings.TrimSpace(doc.JWKSURI) == "" {
		return "", errors.New("openid configuration has no jwks_uri")
	}
	return doc.JWKSURI, nil
}

func (v *Verifier) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return v.httpClient.Do(req)
}

func parseRSAPublicKey(nRaw, eRaw string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nRaw))
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eRaw))
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	eBig := new(big.Int).SetBytes(eBytes)
	if n.Sign() <= 0 || !eBig.IsInt64() {
		return nil, errors.New("invalid rsa key")
	}
	e := int(eBig.Int64())
	if e <= 0 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

func parseCacheMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "max-age=") {
			continue
		}
		raw := strings.TrimPrefix(part, "max-age=")
		secs, err := time.ParseDuration(raw + "s")
		if err != nil {
			return 0
		}
		return secs
	}
	return 0
}
