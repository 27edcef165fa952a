package domain

import "strconv"

// Role defines a principal's permission level for the search service
type Role string

const (
	RoleAdmin  Role = "admin"  // May trigger reindexing
	RoleMember Role = "member" // Search only
)

// Principal is the caller of a search. A nil or anonymous principal can
// still search but only sees public content.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Anonymous returns the principal used for unauthenticated requests.
func Anonymous() *Principal {
	return &Principal{}
}

// IsAnonymous reports whether p represents an unauthenticated caller.
func (p *Principal) IsAnonymous() bool {
	return p == nil || (p.UserID == 0 && p.Username == "")
}

// IsAdmin reports whether p may run admin operations.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Principal converts validated claims to a principal.
func (c *TokenClaims) Principal() *Principal {
	return &Principal{UserID: c.UserID, Username: c.Username, Role: c.Role}
}

// FavoriteKey identifies a learning resource across object types, matching
// the key the favorites/lists scripts compute from a hit.
func FavoriteKey(objectType ObjectType, id int64) string {
	return string(objectType) + ":" + strconv.FormatInt(id, 10)
}
