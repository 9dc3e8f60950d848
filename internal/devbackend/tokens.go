package devbackend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "consola-devbackend"

// ErrInvalidToken indicates the token failed validation or was revoked.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// Tokens issues HS256 access tokens and tracks revoked ids until they expire.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	method jwt.SigningMethod

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokens returns a token authority. secret must not be empty.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be greater than zero")
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		method:  jwt.SigningMethodHS256,
		revoked: make(map[string]time.Time),
	}, nil
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for userID.
func (t *Tokens) Issue(userID int64) (string, error) {
	if userID <= 0 {
		return "", errors.New("userID is required")
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, claims and revocation.
func (t *Tokens) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID() <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if t.isRevoked(claims.ID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates the token id until its natural expiry.
func (t *Tokens) Revoke(c *Claims) {
	if c == nil || c.ID == "" {
		return
	}
	exp := t.now().Add(t.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[c.ID] = exp
	now := t.now()
	for id, until := range t.revoked {
		if now.After(until) {
			delete(t.revoked, id)
		}
	}
}

func (t *Tokens) isRevoked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.revoked[id]
	return ok
}
