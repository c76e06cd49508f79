// Package auth validates admin JWTs for the ArtKey service. The storefront's
// identity provider signs admin tokens with EdDSA keys published at a JWKS
// endpoint; this client fetches and caches that key set and checks the role
// claim that grants moderation privilege.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the role claim value that grants admin privilege.
const AdminRole = "admin"

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a single JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

// Client handles JWKS discovery, caching and admin JWT validation.
type Client struct {
	jwksURL    string
	httpClient *http.Client
	cache      *jwksCache
	testMode   bool
}

type jwksCache struct {
	jwks      *JWKS
	expiresAt time.Time
	mutex     sync.RWMutex
}

// NewClient creates a JWKS client for the given endpoint.
func NewClient(jwksURL string) *Client {
	return &Client{
		jwksURL: jwksURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: &jwksCache{},
	}
}

// NewTestClient creates a client that checks claims without verifying
// signatures, for use in the test suites only.
func NewTestClient() *Client {
	return &Client{testMode: true}
}

func (c *Client) fetchJWKS(ctx context.Context) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	return &jwks, nil
}

// getJWKS returns the cached key set, refetching after the 5-minute TTL.
func (c *Client) getJWKS(ctx context.Context) (*JWKS, error) {
	c.cache.mutex.RLock()
	if c.cache.jwks != nil && time.Now().Before(c.cache.expiresAt) {
		jwks := c.cache.jwks
		c.cache.mutex.RUnlock()
		return jwks, nil
	}
	c.cache.mutex.RUnlock()

	c.cache.mutex.Lock()
	defer c.cache.mutex.Unlock()

	// Double-check after acquiring the write lock
	if c.cache.jwks != nil && time.Now().Before(c.cache.expiresAt) {
		return c.cache.jwks, nil
	}

	jwks, err := c.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.jwks = jwks
	c.cache.expiresAt = time.Now().Add(5 * time.Minute)

	return jwks, nil
}

func (c *Client) getKey(ctx context.Context, kid string) (*JWK, error) {
	jwks, err := c.getJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return &key, nil
		}
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

// ValidateAdminJWT verifies a token against the JWKS and the expected
// issuer/audience, and returns its claims. Callers check the role claim via
// IsAdmin.
func (c *Client) ValidateAdminJWT(ctx context.Context, tokenString, expectedIssuer, expectedAudience string) (jwt.MapClaims, error) {
	if c.testMode {
		return c.validateUnverified(tokenString, expectedIssuer, expectedAudience)
	}

	// Parse without verification to read the key id from the header
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("missing or invalid kid in JWT header")
	}

	jwk, err := c.getKey(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" || jwk.Alg != "EdDSA" {
		return nil, fmt.Errorf("unsupported key type or algorithm")
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ed25519.PublicKey(xBytes), nil
	}

	parsedToken, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to verify JWT: %w", err)
	}
	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid JWT claims")
	}

	return verifyStandardClaims(claims, expectedIssuer, expectedAudience, true)
}

// validateUnverified checks claims without signature verification; test
// mode only.
func (c *Client) validateUnverified(tokenString, expectedIssuer, expectedAudience string) (jwt.MapClaims, error) {
	parsedToken, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid JWT claims")
	}
	return verifyStandardClaims(claims, expectedIssuer, expectedAudience, false)
}

func verifyStandardClaims(claims jwt.MapClaims, expectedIssuer, expectedAudience string, checkExpiry bool) (jwt.MapClaims, error) {
	if iss, ok := claims["iss"].(string); !ok || iss != expectedIssuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if aud, ok := claims["aud"].(string); !ok || aud != expectedAudience {
		return nil, fmt.Errorf("invalid audience")
	}
	if checkExpiry {
		if exp, ok := claims["exp"].(float64); !ok || float64(time.Now().Unix()) > exp {
			return nil, fmt.Errorf("token expired")
		}
	}
	return claims, nil
}

// IsAdmin reports whether the claims carry the admin role.
func IsAdmin(claims jwt.MapClaims) bool {
	role, ok := claims["role"].(string)
	return ok && role == AdminRole
}
