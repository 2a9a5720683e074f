package auth

type Role string

const (
	// RoleService may call encrypt/decrypt and read observability data.
	RoleService Role = "service"
	// RoleAdmin may additionally trigger migration and key rotation.
	RoleAdmin Role = "admin"
)

type Claims struct {
	Sub       string `json:"sub"` // calling service / operator id
	Roles     []Role `json:"roles"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
