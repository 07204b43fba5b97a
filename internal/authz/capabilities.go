package authz

// Operation identifies one kind of guarded operation. The requirement
// table below is the single source of truth: it is declared once, never
// derived from request data, and mirrored (for rendering only) by the
// web client.
type Operation string

const (
	OpSchoolCreate Operation = "school.create"
	OpSchoolRead   Operation = "school.read"
	OpSchoolUpdate Operation = "school.update"

	OpMemberList       Operation = "member.list"
	OpMemberInvite     Operation = "member.invite"
	OpMemberUpdateRole Operation = "member.update_role"
	OpMemberRevoke     Operation = "member.revoke"

	OpLessonCreate Operation = "lesson.create"
	OpLessonRead   Operation = "lesson.read"
	OpLessonList   Operation = "lesson.list"
	OpLessonUpdate Operation = "lesson.update"
	OpLessonDelete Operation = "lesson.delete"

	OpAccountDeactivate    Operation = "account.deactivate"
	OpAccountPlatformGrant Operation = "account.grant_platform"
)

var capabilities = map[Operation]Requirement{
	OpSchoolCreate: {Roles: []Role{RolePlatformOwner}},
	OpSchoolRead:   {Roles: []Role{RoleStudent}},
	OpSchoolUpdate: {Roles: []Role{RoleSchoolOwner}},

	OpMemberList:       {Roles: []Role{RoleTeacher}},
	OpMemberInvite:     {Roles: []Role{RoleSchoolOwner}},
	OpMemberUpdateRole: {Roles: []Role{RoleSchoolOwner}},
	OpMemberRevoke:     {Roles: []Role{RoleSchoolOwner}},

	OpLessonCreate: {Roles: []Role{RoleTeacher}},
	OpLessonRead:   {Roles: []Role{RoleStudent}},
	OpLessonList:   {Roles: []Role{RoleStudent}},
	// Updating or deleting a lesson additionally requires owning it;
	// the guard performs the ownership check, the table pins the role.
	OpLessonUpdate: {Roles: []Role{RoleTeacher}, RequireAll: true},
	OpLessonDelete: {Roles: []Role{RoleTeacher}, RequireAll: true},

	OpAccountDeactivate:    {Roles: []Role{RolePlatformOwner}},
	OpAccountPlatformGrant: {Roles: []Role{RolePlatformOwner}},
}

// RequirementFor looks up the declared requirement for an operation.
// Unknown operations are a programming error and must deny.
func RequirementFor(op Operation) (Requirement, bool) {
	req, ok := capabilities[op]
	return req, ok
}

// Operations returns the declared operation kinds, for exhaustiveness
// checks in tests and for the client-side mirror.
func Operations() []Operation {
	ops := make([]Operation, 0, len(capabilities))
	for op := range capabilities {
		ops = append(ops, op)
	}
	return ops
}
