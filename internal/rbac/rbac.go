package rbac

type Role string
type Action string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	ActionRead        Action = "read"
	ActionContribute  Action = "contribute"
	ActionModerate    Action = "moderate"
	ActionManageUsers Action = "manage_users"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionRead || action == ActionContribute
	case RoleGuest:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps a stored role onto a known one. Anything unrecognised,
// including the empty role of a signed-out caller, is a guest.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleGuest
	}
}
