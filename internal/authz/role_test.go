package authz

import "testing"

func TestParseRole(t *testing.T) {
	valid := []string{"student", "teacher", "school_owner", "platform_owner"}
	for _, name := range valid {
		role, err := ParseRole(name)
		if err != nil {
			t.Fatalf("expected role %s to parse: %v", name, err)
		}
		if role.String() != name {
			t.Fatalf("expected %s, got %s", name, role)
		}
	}
	for _, name := range []string{"", "admin", "Teacher", "owner"} {
		if _, err := ParseRole(name); err == nil {
			t.Fatalf("expected role %q to be rejected", name)
		}
	}
}

func TestRoleDominance(t *testing.T) {
	cases := []struct {
		held     Role
		required Role
		want     bool
	}{
		{RoleStudent, RoleStudent, true},
		{RoleStudent, RoleTeacher, false},
		{RoleStudent, RoleSchoolOwner, false},
		{RoleStudent, RolePlatformOwner, false},
		{RoleTeacher, RoleStudent, true},
		{RoleTeacher, RoleTeacher, true},
		{RoleTeacher, RoleSchoolOwner, false},
		{RoleSchoolOwner, RoleStudent, true},
		{RoleSchoolOwner, RoleTeacher, true},
		{RoleSchoolOwner, RoleSchoolOwner, true},
		{RoleSchoolOwner, RolePlatformOwner, false},
	}
	for _, tc := range cases {
		if got := tc.held.Satisfies(tc.required); got != tc.want {
			t.Fatalf("%s satisfies %s: expected %v, got %v", tc.held, tc.required, tc.want, got)
		}
	}
}
