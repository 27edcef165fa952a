package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Ensure Adapter implements TokenAdapter
var _ driven.TokenAdapter = (*Adapter)(nil)

// jwtClaims is the token payload shared with the discussion platform. The
// user id travels in the standard subject claim.
type jwtClaims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Adapter signs and verifies HS256 tokens with a shared secret
type Adapter struct {
	secret []byte
}

// NewAdapter creates a token adapter for the given shared secret
func NewAdapter(secret string) *Adapter {
	return &Adapter{secret: []byte(secret)}
}

// GenerateToken signs domain claims
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	jc := jwtClaims{
		Username: claims.Username,
		Role:     claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(claims.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(a.secret)
}

// ParseToken verifies the signature and expiry and extracts domain claims.
// Expired tokens yield domain.ErrTokenExpired, anything else invalid
// domain.ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	var jc jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &jc, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	userID, err := strconv.ParseInt(jc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: subject must be a user id", domain.ErrTokenInvalid)
	}

	claims := &domain.TokenClaims{
		UserID:   userID,
		Username: jc.Username,
		Role:     jc.Role,
	}
	if jc.IssuedAt != nil {
		claims.IssuedAt = jc.IssuedAt.Unix()
	}
	if jc.ExpiresAt != nil {
		claims.ExpiresAt = jc.ExpiresAt.Unix()
	}
	if claims.Role == "" {
		claims.Role = domain.RoleMember
	}
	return claims, nil
}
