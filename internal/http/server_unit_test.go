package http

import (
	"testing"
	"time"

	"chalkboard/platform/internal/authz"
	"chalkboard/platform/internal/model"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("header %q: expected %q, got %q", header, expect, got)
		}
	}
}

func TestParseTenantRole(t *testing.T) {
	for _, name := range []string{"student", "teacher", "school_owner", " Teacher "} {
		if _, err := parseTenantRole(name); err != nil {
			t.Fatalf("expected role %q to be assignable", name)
		}
	}
	if _, err := parseTenantRole("platform_owner"); err == nil {
		t.Fatalf("expected platform role to be rejected")
	}
	if _, err := parseTenantRole("principal"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestCanManageLesson(t *testing.T) {
	now := time.Now().UTC()
	owner := &SessionContext{
		AccountID: "owner",
		Memberships: []model.Membership{
			{AccountID: "owner", SchoolID: "school-a", Role: authz.RoleSchoolOwner, CreatedAt: now},
		},
	}
	author := &SessionContext{
		AccountID: "author",
		Memberships: []model.Membership{
			{AccountID: "author", SchoolID: "school-a", Role: authz.RoleTeacher, CreatedAt: now},
		},
	}
	colleague := &SessionContext{
		AccountID: "colleague",
		Memberships: []model.Membership{
			{AccountID: "colleague", SchoolID: "school-a", Role: authz.RoleTeacher, CreatedAt: now},
		},
	}
	platform := &SessionContext{
		AccountID: "root",
		Memberships: []model.Membership{
			{AccountID: "root", SchoolID: "", Role: authz.RolePlatformOwner, CreatedAt: now},
		},
	}

	if !canManageLesson(author, "school-a", "author") {
		t.Fatalf("expected lesson author to manage own lesson")
	}
	if canManageLesson(colleague, "school-a", "author") {
		t.Fatalf("expected colleague teacher to be denied")
	}
	if !canManageLesson(owner, "school-a", "author") {
		t.Fatalf("expected school owner to manage any lesson in school")
	}
	if canManageLesson(owner, "school-b", "author") {
		t.Fatalf("expected school owner of another school to be denied")
	}
	if !canManageLesson(platform, "school-a", "author") {
		t.Fatalf("expected platform owner to manage any lesson")
	}
	if canManageLesson(nil, "school-a", "author") {
		t.Fatalf("expected nil session to be denied")
	}
}

func TestHasPlatformGrant(t *testing.T) {
	sc := &SessionContext{
		AccountID: "acct",
		Memberships: []model.Membership{
			{AccountID: "acct", SchoolID: "school-a", Role: authz.RoleSchoolOwner},
		},
	}
	if sc.HasPlatformGrant() {
		t.Fatalf("school owner membership must not count as a platform grant")
	}
	sc.Memberships = append(sc.Memberships, model.Membership{
		AccountID: "acct", SchoolID: "", Role: authz.RolePlatformOwner,
	})
	if !sc.HasPlatformGrant() {
		t.Fatalf("expected platform grant to be detected")
	}
}
