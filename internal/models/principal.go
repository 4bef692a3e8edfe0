package models

// Role of the authenticated principal
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// TokenPayload is the principal extracted from a verified auth token
type TokenPayload struct {
	UserID   uint64
	UserName string
	Role     Role
}

// IsAdmin reports whether the principal is an operator
func (p *TokenPayload) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// CanAccess reports whether the principal may act on a resource owned by ownerID
func (p *TokenPayload) CanAccess(ownerID uint64) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.UserID == ownerID
}
