package users

// Identity is the validated principal resolved from a session token.
// The untyped provider claims never travel past the auth boundary.
type Identity struct {
	AuthID    string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// RoleSuperadmin is the provider role trusted for privileged endpoints
const RoleSuperadmin = "superadmin"

func (i Identity) IsSuperadmin() bool { return i.Role == RoleSuperadmin }
