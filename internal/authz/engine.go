package authz

import "time"

// Decision is the outcome of a single authorization check.
type Decision int

const (
	// NotFoundForIsolation denies without revealing whether the target
	// exists: the caller has no membership in the target school, so the
	// resource must look like it does not exist.
	NotFoundForIsolation Decision = iota
	// Forbidden denies with a resolved membership whose role is
	// insufficient for the requirement.
	Forbidden
	Allow
)

var decisionNames = map[Decision]string{
	NotFoundForIsolation: "not_found_for_isolation",
	Forbidden:            "forbidden",
	Allow:                "allow",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return "unknown"
}

// Requirement is a declared role requirement for one operation kind.
// RequireAll demands every listed role be satisfied; the default is any.
type Requirement struct {
	Roles      []Role
	RequireAll bool
}

// MembershipView is the slice of a stored membership the engine needs.
// An empty SchoolID marks the platform grant.
type MembershipView struct {
	SchoolID string
	Role     Role
}

// Input carries everything one decision needs. Memberships and the
// target school are explicit arguments: the engine holds no session or
// request state and caches nothing between calls, so a revoked
// membership is gone on the very next decision.
type Input struct {
	AccountID    string
	Memberships  []MembershipView
	TargetSchool string
	Requirement  Requirement
}

// Decide runs the allow/deny algorithm.
//
// The platform grant dominates every school and every requirement. A
// missing membership for the target school is indistinguishable from a
// missing resource. Role dominance flows strictly downward.
func Decide(in Input) Decision {
	for _, m := range in.Memberships {
		if m.SchoolID == "" && m.Role == RolePlatformOwner {
			return Allow
		}
	}

	if in.TargetSchool == "" {
		// Platform-scoped operation without the grant.
		return Forbidden
	}

	var held Role
	found := false
	for _, m := range in.Memberships {
		if m.SchoolID == in.TargetSchool {
			held = m.Role
			found = true
			break
		}
	}
	if !found {
		return NotFoundForIsolation
	}

	if satisfies(held, in.Requirement) {
		return Allow
	}
	return Forbidden
}

func satisfies(held Role, req Requirement) bool {
	if len(req.Roles) == 0 {
		// Membership in the school is the whole requirement.
		return true
	}
	if req.RequireAll {
		for _, required := range req.Roles {
			if !held.Satisfies(required) {
				return false
			}
		}
		return true
	}
	for _, required := range req.Roles {
		if held.Satisfies(required) {
			return true
		}
	}
	return false
}

// DecisionRecord is what the guard hands to the audit consumer.
type DecisionRecord struct {
	AccountID string
	SchoolID  string
	Operation Operation
	Decision  Decision
	Time      time.Time
}

// DecisionSink receives every decision the guard makes. Implementations
// must not block the request path.
type DecisionSink interface {
	Record(DecisionRecord)
}
