package authz

import "testing"

func TestRequirementForKnownOperations(t *testing.T) {
	for _, op := range Operations() {
		req, ok := RequirementFor(op)
		if !ok {
			t.Fatalf("expected requirement for %s", op)
		}
		for _, role := range req.Roles {
			if !role.Valid() {
				t.Fatalf("operation %s declares invalid role %d", op, role)
			}
		}
	}
}

func TestRequirementForUnknownOperation(t *testing.T) {
	if _, ok := RequirementFor(Operation("billing.charge")); ok {
		t.Fatalf("expected unknown operation to have no requirement")
	}
}

func TestPlatformOnlyOperations(t *testing.T) {
	for _, op := range []Operation{OpSchoolCreate, OpAccountDeactivate, OpAccountPlatformGrant} {
		req, ok := RequirementFor(op)
		if !ok {
			t.Fatalf("missing requirement for %s", op)
		}
		if len(req.Roles) != 1 || req.Roles[0] != RolePlatformOwner {
			t.Fatalf("expected %s to require the platform grant", op)
		}
	}
}
