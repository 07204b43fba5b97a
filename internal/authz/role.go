package authz

import "fmt"

// Role is the closed, ordered set of roles a membership can carry.
// Higher roles dominate lower ones within the same school; there is no
// upward dominance. platform_owner is never stored against a school:
// it is the tenant-independent grant.
type Role int

const (
	RoleStudent Role = iota + 1
	RoleTeacher
	RoleSchoolOwner
	RolePlatformOwner
)

var roleNames = map[Role]string{
	RoleStudent:       "student",
	RoleTeacher:       "teacher",
	RoleSchoolOwner:   "school_owner",
	RolePlatformOwner: "platform_owner",
}

var rolesByName = map[string]Role{
	"student":        RoleStudent,
	"teacher":        RoleTeacher,
	"school_owner":   RoleSchoolOwner,
	"platform_owner": RolePlatformOwner,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole rejects anything outside the closed set. Free-form role
// strings never reach a comparison.
func ParseRole(name string) (Role, error) {
	role, ok := rolesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown role %q", name)
	}
	return role, nil
}

// dominance is the explicit table of which held role satisfies which
// required role. A held role always satisfies itself.
var dominance = map[Role][]Role{
	RoleStudent:     {},
	RoleTeacher:     {RoleStudent},
	RoleSchoolOwner: {RoleTeacher, RoleStudent},
	// The platform grant never reaches the table; Decide short-circuits
	// on it before any role comparison.
	RolePlatformOwner: {RoleSchoolOwner, RoleTeacher, RoleStudent},
}

// Satisfies reports whether a membership holding r meets a requirement
// for required.
func (r Role) Satisfies(required Role) bool {
	if r == required {
		return true
	}
	for _, dominated := range dominance[r] {
		if dominated == required {
			return true
		}
	}
	return false
}
