package driven

import "github.com/custodia-labs/discussion-search/internal/core/domain"

// TokenAdapter signs and verifies bearer tokens. Tokens are issued by the
// discussion platform; this service only needs to read them, and to mint
// them for operators.
type TokenAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
