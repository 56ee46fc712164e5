// Package auth provides JWT verification helpers.
package auth

import (
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

	"github.com/golang-jwt/jwt/v5"

	"patrolnav/internal/config"
)

// Verifier validates bearer tokens and extracts tenant/role claims.
// Supports modes: dev (tenant:role, no signature), hmac (HS256), jwks (RS256 from a JWKS URL).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string

	http      *http.Client
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
	cacheTTL  time.Duration
}

// Principal is the authenticated caller.
type Principal struct {
	Tenant string
	Role   string // admin, dispatcher, officer, viewer
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing tenant claim")
)

func NewVerifier(cfg config.AuthConfig) *Verifier {
	mode := cfg.Mode
	if mode == "" {
		mode = "dev"
	}
	tc, rc := cfg.TenantClaim, cfg.RoleClaim
	if tc == "" {
		tc = "tenant"
	}
	if rc == "" {
		rc = "role"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(cfg.HMACSecret),
		JWKSURL:     cfg.JWKSURL,
		TenantClaim: tc,
		RoleClaim:   rc,
		http:        &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    10 * time.Minute,
	}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		parts := strings.SplitN(token, ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, fmt.Errorf("%w: expected tenant:role in dev mode", ErrInvalidToken)
	}

	var (
		parser  *jwt.Parser
		keyFunc jwt.Keyfunc
	)
	switch v.Mode {
	case "hmac":
		parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
		keyFunc = func(*jwt.Token) (any, error) { return v.HMACSecret, nil }
	case "jwks":
		parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
		keyFunc = func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			return v.rsaKey(kid)
		}
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
	}

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	if tenant == "" {
		return Principal{}, ErrMissingClaim
	}
	if role == "" {
		role = "viewer"
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role)}, nil
}

// rsaKey returns the public key for kid, refreshing the JWKS cache when stale or missing the kid.
func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if ok && !stale {
		return key, nil
	}
	if err := v.fetchJWKS(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("kid not found in JWKS")
}

type jwks struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL not set")
	}
	resp, err := v.http.Get(v.JWKSURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
