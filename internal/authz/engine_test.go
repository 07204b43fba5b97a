package authz

import "testing"

const (
	schoolA = "11111111-1111-1111-1111-11111111111a"
	schoolB = "11111111-1111-1111-1111-11111111111b"
)

func teacherInA() []MembershipView {
	return []MembershipView{{SchoolID: schoolA, Role: RoleTeacher}}
}

func TestTenantIsolation(t *testing.T) {
	// A teacher in school A probing school B must see "not found",
	// never an answer that reveals school B resources exist.
	decision := Decide(Input{
		AccountID:    "t1",
		Memberships:  teacherInA(),
		TargetSchool: schoolB,
		Requirement:  Requirement{Roles: []Role{RoleTeacher}},
	})
	if decision != NotFoundForIsolation {
		t.Fatalf("expected isolation, got %s", decision)
	}
}

func TestZeroMembershipsAlwaysIsolated(t *testing.T) {
	for _, target := range []string{schoolA, schoolB} {
		decision := Decide(Input{
			AccountID:    "nobody",
			Memberships:  nil,
			TargetSchool: target,
			Requirement:  Requirement{Roles: []Role{RoleStudent}},
		})
		if decision != NotFoundForIsolation {
			t.Fatalf("expected isolation for %s, got %s", target, decision)
		}
	}
}

func TestPlatformDominance(t *testing.T) {
	grant := []MembershipView{{SchoolID: "", Role: RolePlatformOwner}}
	requirements := []Requirement{
		{Roles: []Role{RoleStudent}},
		{Roles: []Role{RoleSchoolOwner}},
		{Roles: []Role{RoleTeacher, RoleSchoolOwner}, RequireAll: true},
		{Roles: []Role{RolePlatformOwner}},
	}
	for _, target := range []string{schoolA, schoolB, ""} {
		for _, req := range requirements {
			decision := Decide(Input{
				AccountID:    "root",
				Memberships:  grant,
				TargetSchool: target,
				Requirement:  req,
			})
			if decision != Allow {
				t.Fatalf("expected allow for target=%q req=%v, got %s", target, req, decision)
			}
		}
	}
}

func TestNoUpwardRoleLeakage(t *testing.T) {
	student := []MembershipView{{SchoolID: schoolA, Role: RoleStudent}}
	decision := Decide(Input{
		AccountID:    "s1",
		Memberships:  student,
		TargetSchool: schoolA,
		Requirement:  Requirement{Roles: []Role{RoleTeacher}},
	})
	if decision != Forbidden {
		t.Fatalf("expected forbidden, got %s", decision)
	}
}

func TestRequireAllSemantics(t *testing.T) {
	req := Requirement{Roles: []Role{RoleTeacher, RoleSchoolOwner}}

	anyOf := req
	decision := Decide(Input{
		AccountID:    "t1",
		Memberships:  teacherInA(),
		TargetSchool: schoolA,
		Requirement:  anyOf,
	})
	if decision != Allow {
		t.Fatalf("expected any-of to allow teacher, got %s", decision)
	}

	allOf := req
	allOf.RequireAll = true
	decision = Decide(Input{
		AccountID:    "t1",
		Memberships:  teacherInA(),
		TargetSchool: schoolA,
		Requirement:  allOf,
	})
	if decision != Forbidden {
		t.Fatalf("expected all-of to deny teacher, got %s", decision)
	}

	// A school owner dominates both listed roles and passes the all-of
	// form without holding either literally.
	owner := []MembershipView{{SchoolID: schoolA, Role: RoleSchoolOwner}}
	decision = Decide(Input{
		AccountID:    "o1",
		Memberships:  owner,
		TargetSchool: schoolA,
		Requirement:  allOf,
	})
	if decision != Allow {
		t.Fatalf("expected all-of to allow school owner, got %s", decision)
	}
}

func TestImmediateRevocation(t *testing.T) {
	// The engine takes memberships as an argument and keeps no state:
	// once the store stops returning a membership, the next decision
	// isolates with no stale-allow window.
	in := Input{
		AccountID:    "t1",
		Memberships:  teacherInA(),
		TargetSchool: schoolA,
		Requirement:  Requirement{Roles: []Role{RoleTeacher}},
	}
	if decision := Decide(in); decision != Allow {
		t.Fatalf("expected allow before revocation, got %s", decision)
	}
	in.Memberships = nil
	if decision := Decide(in); decision != NotFoundForIsolation {
		t.Fatalf("expected isolation after revocation, got %s", decision)
	}
}

func TestTeacherScenario(t *testing.T) {
	// Membership(T1, school A, teacher); lesson-42 lives in school A.
	in := Input{
		AccountID:    "T1",
		Memberships:  teacherInA(),
		TargetSchool: schoolA,
		Requirement:  Requirement{Roles: []Role{RoleTeacher}},
	}
	if decision := Decide(in); decision != Allow {
		t.Fatalf("expected allow in own school, got %s", decision)
	}
	in.TargetSchool = schoolB
	if decision := Decide(in); decision != NotFoundForIsolation {
		t.Fatalf("expected isolation in foreign school, got %s", decision)
	}
}

func TestStudentScenarioDistinguishable(t *testing.T) {
	// A student whose membership exists but whose role is insufficient
	// gets Forbidden, distinct from the isolation decision even though
	// both map to denials at the transport.
	student := []MembershipView{{SchoolID: schoolA, Role: RoleStudent}}
	decision := Decide(Input{
		AccountID:    "S1",
		Memberships:  student,
		TargetSchool: schoolA,
		Requirement:  Requirement{Roles: []Role{RoleTeacher, RoleSchoolOwner, RolePlatformOwner}},
	})
	if decision != Forbidden {
		t.Fatalf("expected forbidden, got %s", decision)
	}
	if decision == NotFoundForIsolation {
		t.Fatalf("role failure must not present as isolation")
	}
}

func TestMembershipOnlyRequirement(t *testing.T) {
	decision := Decide(Input{
		AccountID:    "s1",
		Memberships:  []MembershipView{{SchoolID: schoolA, Role: RoleStudent}},
		TargetSchool: schoolA,
		Requirement:  Requirement{},
	})
	if decision != Allow {
		t.Fatalf("expected membership alone to satisfy empty requirement, got %s", decision)
	}
}

func TestPlatformRequirementWithoutGrant(t *testing.T) {
	decision := Decide(Input{
		AccountID:    "o1",
		Memberships:  []MembershipView{{SchoolID: schoolA, Role: RoleSchoolOwner}},
		TargetSchool: "",
		Requirement:  Requirement{Roles: []Role{RolePlatformOwner}},
	})
	if decision != Forbidden {
		t.Fatalf("expected forbidden for platform op without grant, got %s", decision)
	}
}
