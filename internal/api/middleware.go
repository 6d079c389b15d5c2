/**
 * @description
 * Authentication, internal-key and rate-limit middleware for the FDR API.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT parsing and claim validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/procura/fdr-service/internal/app"
)

type contextKey string

// UserIDContextKey is the key used to store the user ID in the request context.
const UserIDContextKey = contextKey("userID")

const jwksCacheTTL = 10 * time.Minute

// UserIDHeader carries the caller's user ID when header fallback is enabled.
const UserIDHeader = "X-User-Id"

// AuthConfig controls how /fdrs requests are authenticated.
type AuthConfig struct {
	JWKSURL  string
	Audience string
	Issuer   string
	// AllowHeaderFallback trusts UserIDHeader on requests without a bearer
	// token. Only for local environments.
	AllowHeaderFallback bool
}

// AuthMiddleware validates bearer JWTs signed by a key from the JWKS endpoint
// and injects the subject into the request context. Requests without a token
// are rejected unless header fallback is enabled.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	keys := newKeySet(jwksURL)
	var opts []jwt.ParserOption
	opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				if cfg.AllowHeaderFallback {
					if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
						ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}
			if jwksURL == "" {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				kid, ok := token.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("kid not found in token header")
				}
				return keys.get(r.Context(), kid)
			}, opts...)
			if err != nil || !token.Valid {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := token.Claims.GetSubject()
			if err != nil || userID == "" {
				respondWithError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the user ID from the request context.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok
}

// InternalAuthMiddleware validates the internal API key for server-to-server
// calls. An empty required key rejects every request.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	requiredKey = strings.TrimSpace(requiredKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-API-Key")
			if requiredKey == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
				respondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter decides whether a caller may make another request in a scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string) (app.RateDecision, error)
}

// RateLimitMiddleware enforces the limiter's quota for scope on each caller.
// The caller is the authenticated user, or the client address without auth.
// Limiter errors let the request through.
func RateLimitMiddleware(limiter RateLimiter, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := UserFromContext(r.Context())
			if !ok {
				subject = clientAddress(r)
			}

			decision, err := limiter.Allow(r.Context(), scope, subject)
			if err != nil {
				logger.Warn("rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
				respondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// keySet caches the RSA keys published at a JWKS endpoint.
type keySet struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// get returns the key for kid, refetching when the cache is stale or the kid
// is unknown.
func (s *keySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[kid]; ok && time.Since(s.fetched) < jwksCacheTTL {
		return key, nil
	}

	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	s.keys = keys
	s.fetched = time.Now()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return key, nil
}

func (s *keySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, err
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}
