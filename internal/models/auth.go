package models

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     Role     `json:"role"`
	Shops    []string `json:"shop_permissions"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanSeeShop reports whether the principal may see orders of shop.
func (p Principal) CanSeeShop(shop string) bool {
	if p.IsAdmin() {
		return true
	}
	for _, s := range p.Shops {
		if s == shop {
			return true
		}
	}
	return false
}

// TokenResponse is printed by the migrate tool for local development.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
