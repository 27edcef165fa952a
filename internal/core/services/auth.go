package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driving"
)

// Ensure tokenValidator implements TokenValidator
var _ driving.TokenValidator = (*tokenValidator)(nil)

type tokenValidator struct {
	tokens driven.TokenAdapter
}

// NewTokenValidator creates a TokenValidator backed by a token adapter
func NewTokenValidator(tokens driven.TokenAdapter) driving.TokenValidator {
	return &tokenValidator{tokens: tokens}
}

// ValidateToken returns the principal named by a bearer token.
func (v *tokenValidator) ValidateToken(ctx context.Context, token string) (*domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := v.tokens.ParseToken(token)
	if errors.Is(err, domain.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	principal := claims.Principal()
	if principal.IsAnonymous() {
		return nil, domain.ErrTokenInvalid
	}
	return principal, nil
}
