package driving

import (
	"context"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// TokenValidator turns a bearer token into the principal making the request
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Principal, error)
}
