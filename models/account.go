package models

// Role is the permission level of an account.
type Role int32

const (
	RoleAdmin Role = 0
	RoleUser  Role = 1
	RoleVIP   Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	case RoleVIP:
		return "vip"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleVIP
}

// Account represents a user of the system. Purchased tickets live in the
// user's ledger, loaded separately by username.
type Account struct {
	Username string  `json:"username"`
	Password string  `json:"-"`
	Role     Role    `json:"role"`
	Balance  float64 `json:"balance"`
}

// IsAdmin reports whether the account can manage the catalog.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
