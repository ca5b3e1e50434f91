package domain

// Role is the access level of a user.
type Role int

const (
	// RoleMember is a regular participant.
	RoleMember Role = 1
	// RoleModerator can review claims.
	RoleModerator Role = 2
	// RoleAdmin holds operator credentials and administrative powers.
	RoleAdmin Role = 3
)

// User is a participant in the insurance program. Credential is the
// operator-held feed secret; it is consumed only by the feed adapter and
// must never be logged.
type User struct {
	ID         string
	Name       string
	Role       Role
	Credential string
}
