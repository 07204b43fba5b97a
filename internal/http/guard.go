package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"chalkboard/platform/internal/auth"
	"chalkboard/platform/internal/authz"
	"chalkboard/platform/internal/model"
)

// SessionContext is the per-request authorization snapshot: identity,
// memberships, and selected school are resolved once when the request
// enters and never re-read mid-flight, so a concurrent school switch or
// revocation affects the next request, not this one.
type SessionContext struct {
	AccountID      string
	SessionID      string
	SelectedSchool string
	Memberships    []model.Membership
}

func (sc *SessionContext) HasPlatformGrant() bool {
	for _, m := range sc.Memberships {
		if m.SchoolID == "" && m.Role == authz.RolePlatformOwner {
			return true
		}
	}
	return false
}

func (sc *SessionContext) membershipViews() []authz.MembershipView {
	views := make([]authz.MembershipView, 0, len(sc.Memberships))
	for _, m := range sc.Memberships {
		views = append(views, authz.MembershipView{SchoolID: m.SchoolID, Role: m.Role})
	}
	return views
}

type sessionKey struct{}

func sessionFromContext(ctx context.Context) *SessionContext {
	value := ctx.Value(sessionKey{})
	sc, _ := value.(*SessionContext)
	return sc
}

// sessionMiddleware resolves the bearer handle into a SessionContext.
// Any failure along the way is plain unauthenticated: a malformed or
// tampered handle never yields a partial identity.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		claims, err := auth.ParseSessionToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		record, err := s.sessions.Get(r.Context(), claims.SessionID)
		if err != nil || record.AccountID != claims.AccountID {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		// Memberships are read fresh on every request; the engine never
		// caches a decision, so revocation is effective immediately.
		memberships, err := s.store.GetMemberships(r.Context(), record.AccountID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		sc := &SessionContext{
			AccountID:      record.AccountID,
			SessionID:      record.SessionID,
			SelectedSchool: record.SelectedSchool,
			Memberships:    memberships,
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize runs one declared operation against a target school and
// enforces the outcome. The target always comes from the resource (or
// the route segment naming it), never from caller-supplied body fields.
// It returns true only on Allow; on any denial the response is already
// written and carries no detail about why.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, op authz.Operation, targetSchool string) bool {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return false
	}

	requirement, ok := authz.RequirementFor(op)
	if !ok {
		// Undeclared operations deny closed.
		s.recordDecision(sc, op, targetSchool, authz.Forbidden)
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}

	decision := authz.Decide(authz.Input{
		AccountID:    sc.AccountID,
		Memberships:  sc.membershipViews(),
		TargetSchool: targetSchool,
		Requirement:  requirement,
	})

	// Cross-check the session's selected school against the resource's
	// school: a member of both A and B working in A must not reach B
	// resources without an explicit switch. Mismatches present as
	// missing resources. The platform grant is school-independent.
	if decision == authz.Allow && targetSchool != "" && !sc.HasPlatformGrant() && sc.SelectedSchool != targetSchool {
		decision = authz.NotFoundForIsolation
	}

	s.recordDecision(sc, op, targetSchool, decision)

	switch decision {
	case authz.Allow:
		return true
	case authz.Forbidden:
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	default:
		writeError(w, http.StatusNotFound, "not_found")
		return false
	}
}

func (s *Server) recordDecision(sc *SessionContext, op authz.Operation, targetSchool string, decision authz.Decision) {
	if s.decisions == nil {
		return
	}
	s.decisions.Record(authz.DecisionRecord{
		AccountID: sc.AccountID,
		SchoolID:  targetSchool,
		Operation: op,
		Decision:  decision,
		Time:      time.Now().UTC(),
	})
}

// logSink is the default DecisionSink: a log line and a counter for the
// external audit collaborator to scrape.
type logSink struct{}

func (logSink) Record(rec authz.DecisionRecord) {
	decisionCounter.WithLabelValues(string(rec.Operation), rec.Decision.String()).Inc()
	log.Printf("authz decision account=%s school=%s op=%s decision=%s at=%d",
		rec.AccountID, rec.SchoolID, rec.Operation, rec.Decision, rec.Time.Unix())
}
