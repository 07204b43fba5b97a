package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chalkboard/platform/internal/auth"
	"chalkboard/platform/internal/authz"
	"chalkboard/platform/internal/config"
	"chalkboard/platform/internal/crypto"
	"chalkboard/platform/internal/model"
	"chalkboard/platform/internal/repository"
	"chalkboard/platform/internal/session"
)

type Server struct {
	cfg       config.Config
	store     *repository.Store
	sessions  *session.Store
	decisions authz.DecisionSink
}

func NewServer(cfg config.Config, store *repository.Store, sessions *session.Store) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		decisions: logSink{},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.sessionMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.sessionMiddleware).Get("/auth/me", s.handleGetMe)
	r.With(s.sessionMiddleware).Post("/auth/session/school", s.handleSwitchSchool)

	r.With(s.sessionMiddleware).Patch("/auth/me", s.handleUpdateMe)

	r.With(s.sessionMiddleware).Post("/schools", s.handleCreateSchool)
	r.With(s.sessionMiddleware).Get("/schools", s.handleListSchools)
	r.With(s.sessionMiddleware).Get("/schools/{schoolId}", s.handleGetSchool)
	r.With(s.sessionMiddleware).Patch("/schools/{schoolId}", s.handleUpdateSchool)

	r.Route("/schools/{schoolId}/members", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/", s.handleListMembers)
		r.Post("/", s.handleInviteMember)
		r.Patch("/{accountId}", s.handleUpdateMemberRole)
		r.Delete("/{accountId}", s.handleRevokeMember)
	})

	r.With(s.sessionMiddleware).Post("/lessons", s.handleCreateLesson)
	r.With(s.sessionMiddleware).Get("/lessons", s.handleListLessons)
	r.With(s.sessionMiddleware).Get("/lessons/{lessonId}", s.handleGetLesson)
	r.With(s.sessionMiddleware).Patch("/lessons/{lessonId}", s.handlePatchLesson)
	r.With(s.sessionMiddleware).Delete("/lessons/{lessonId}", s.handleDeleteLesson)

	r.With(s.sessionMiddleware).Delete("/accounts/{accountId}", s.handleDeactivateAccount)
	r.With(s.sessionMiddleware).Post("/accounts/{accountId}/platform-grant", s.handleGrantPlatform)

	return r
}

// Models

type accountSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Active      bool   `json:"active"`
}

type membershipSummary struct {
	SchoolID string `json:"schoolId,omitempty"`
	Role     string `json:"role"`
}

type schoolSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Branding  json.RawMessage `json:"branding,omitempty"`
	CreatedOn int64           `json:"createdOn"`
}

type memberSummary struct {
	AccountID string `json:"accountId"`
	SchoolID  string `json:"schoolId"`
	Role      string `json:"role"`
	CreatedOn int64  `json:"createdOn"`
}

type lessonSummary struct {
	ID        string  `json:"id"`
	SchoolID  string  `json:"school"`
	TeacherID string  `json:"teacher"`
	Title     string  `json:"title"`
	Notes     *string `json:"notes,omitempty"`
	StartsAt  int64   `json:"startsAt"`
	CreatedOn int64   `json:"createdOn"`
}

func mapAccount(account model.Account) accountSummary {
	return accountSummary{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Active:      account.Active,
	}
}

func mapMemberships(memberships []model.Membership) []membershipSummary {
	summaries := make([]membershipSummary, 0, len(memberships))
	for _, m := range memberships {
		summaries = append(summaries, membershipSummary{SchoolID: m.SchoolID, Role: m.Role.String()})
	}
	return summaries
}

func mapSchool(school model.School) schoolSummary {
	return schoolSummary{
		ID:        school.ID,
		Name:      school.Name,
		Branding:  json.RawMessage(school.Branding),
		CreatedOn: school.CreatedAt.Unix(),
	}
}

func mapLesson(lesson model.Lesson) lessonSummary {
	return lessonSummary{
		ID:        lesson.ID,
		SchoolID:  lesson.SchoolID,
		TeacherID: lesson.TeacherID,
		Title:     lesson.Title,
		Notes:     lesson.Notes,
		StartsAt:  lesson.StartsAt.Unix(),
		CreatedOn: lesson.CreatedAt.Unix(),
	}
}

// Auth

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusBadRequest, "account_create_failed")
		return
	}

	writeJSON(w, http.StatusCreated, mapAccount(account))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token          string              `json:"token"`
	Account        accountSummary      `json:"account"`
	Memberships    []membershipSummary `json:"memberships"`
	SelectedSchool string              `json:"selectedSchool,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	account, err := s.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !account.Active {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err := crypto.CheckPassword(account.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	memberships, err := s.store.GetMemberships(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Exactly one school membership auto-selects that school; anything
	// else starts unselected and waits for an explicit switch.
	selected := ""
	schoolCount := 0
	for _, m := range memberships {
		if m.SchoolID != "" {
			selected = m.SchoolID
			schoolCount++
		}
	}
	if schoolCount != 1 {
		selected = ""
	}

	record, err := s.sessions.Create(r.Context(), account.ID, selected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	token, err := auth.NewSessionToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.SessionTTL, auth.Claims{
		AccountID: account.ID,
		SessionID: record.SessionID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:          token,
		Account:        mapAccount(account),
		Memberships:    mapMemberships(memberships),
		SelectedSchool: record.SelectedSchool,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := s.sessions.Destroy(r.Context(), sc.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meResponse struct {
	Account        accountSummary      `json:"account"`
	Memberships    []membershipSummary `json:"memberships"`
	SelectedSchool string              `json:"selectedSchool,omitempty"`
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	account, err := s.store.GetAccount(r.Context(), sc.AccountID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Account:        mapAccount(account),
		Memberships:    mapMemberships(sc.Memberships),
		SelectedSchool: sc.SelectedSchool,
	})
}

type updateMeRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Password    *string `json:"password,omitempty"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var update repository.AccountUpdate
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name != "" {
			update.DisplayName = &name
		}
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "password_hash_failed")
			return
		}
		update.PasswordHash = &hash
	}

	account, err := s.store.UpdateAccount(r.Context(), sc.AccountID, update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapAccount(account))
}

type switchSchoolRequest struct {
	SchoolID string `json:"schoolId"`
}

// handleSwitchSchool changes the session's selected school. It is a
// same-session operation gated only on membership existence: no
// re-authentication, no new handle. On any failure the stored selection
// is left untouched.
func (s *Server) handleSwitchSchool(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req switchSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.SchoolID = strings.TrimSpace(req.SchoolID)
	if req.SchoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	if sc.HasPlatformGrant() {
		if _, err := s.store.GetSchool(r.Context(), req.SchoolID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	} else {
		if _, err := s.store.GetMembership(r.Context(), sc.AccountID, req.SchoolID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	record, err := s.sessions.SetSelectedSchool(r.Context(), sc.SessionID, req.SchoolID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"selectedSchool": record.SelectedSchool})
}

// Schools

type createSchoolRequest struct {
	Name     string          `json:"name"`
	Branding json.RawMessage `json:"branding"`
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.OpSchoolCreate, "") {
		return
	}

	var req createSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	now := time.Now().UTC()
	school := model.School{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Branding:  req.Branding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSchool(r.Context(), school); err != nil {
		writeError(w, http.StatusBadRequest, "school_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, mapSchool(school))
}

// handleListSchools lists every school. Declared against school.read
// with no target school, which only the platform grant satisfies.
func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.OpSchoolRead, "") {
		return
	}

	schools, err := s.store.ListSchools(r.Context(), parseLimit(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]schoolSummary, 0, len(schools))
	for _, school := range schools {
		resp = append(resp, mapSchool(school))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}
	if !s.authorize(w, r, authz.OpSchoolRead, schoolID) {
		return
	}

	school, err := s.store.GetSchool(r.Context(), schoolID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapSchool(school))
}

type patchSchoolRequest struct {
	Name     *string         `json:"name,omitempty"`
	Branding json.RawMessage `json:"branding,omitempty"`
}

func (s *Server) handleUpdateSchool(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}
	if !s.authorize(w, r, authz.OpSchoolUpdate, schoolID) {
		return
	}

	var req patchSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.SchoolUpdate{Branding: req.Branding}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" {
			update.Name = &name
		}
	}

	school, err := s.store.UpdateSchool(r.Context(), schoolID, update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed")
		return
	}
	writeJSON(w, http.StatusOK, mapSchool(school))
}

// Members

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}
	if !s.authorize(w, r, authz.OpMemberList, schoolID) {
		return
	}

	members, err := s.store.ListMembersBySchool(r.Context(), schoolID, parseLimit(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]memberSummary, 0, len(members))
	for _, member := range members {
		resp = append(resp, memberSummary{
			AccountID: member.AccountID,
			SchoolID:  member.SchoolID,
			Role:      member.Role.String(),
			CreatedOn: member.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}
	if !s.authorize(w, r, authz.OpMemberInvite, schoolID) {
		return
	}

	var req inviteMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	role, err := parseTenantRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}

	account, err := s.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusNotFound, "account_not_found")
		return
	}
	if !account.Active {
		writeError(w, http.StatusBadRequest, "account_inactive")
		return
	}

	now := time.Now().UTC()
	membership := model.Membership{
		AccountID: account.ID,
		SchoolID:  schoolID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertMembership(r.Context(), membership); err != nil {
		writeError(w, http.StatusBadRequest, "member_invite_failed")
		return
	}

	writeJSON(w, http.StatusCreated, memberSummary{
		AccountID: account.ID,
		SchoolID:  schoolID,
		Role:      role.String(),
		CreatedOn: now.Unix(),
	})
}

type updateMemberRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	accountID := chi.URLParam(r, "accountId")
	if schoolID == "" || accountID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !s.authorize(w, r, authz.OpMemberUpdateRole, schoolID) {
		return
	}

	var req updateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	role, err := parseTenantRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	membership, err := s.store.UpdateMembershipRole(r.Context(), accountID, schoolID, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, memberSummary{
		AccountID: membership.AccountID,
		SchoolID:  membership.SchoolID,
		Role:      membership.Role.String(),
		CreatedOn: membership.CreatedAt.Unix(),
	})
}

func (s *Server) handleRevokeMember(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	accountID := chi.URLParam(r, "accountId")
	if schoolID == "" || accountID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !s.authorize(w, r, authz.OpMemberRevoke, schoolID) {
		return
	}

	deleted, err := s.store.DeleteMembership(r.Context(), accountID, schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Lessons

type createLessonRequest struct {
	Title    string  `json:"title"`
	Notes    *string `json:"notes,omitempty"`
	StartsAt int64   `json:"startsAt"`
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if sc.SelectedSchool == "" {
		writeError(w, http.StatusBadRequest, "school_not_selected")
		return
	}
	if !s.authorize(w, r, authz.OpLessonCreate, sc.SelectedSchool) {
		return
	}

	var req createLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartsAt == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	now := time.Now().UTC()
	lesson := model.Lesson{
		ID:        uuid.NewString(),
		SchoolID:  sc.SelectedSchool,
		TeacherID: sc.AccountID,
		Title:     req.Title,
		Notes:     req.Notes,
		StartsAt:  time.Unix(req.StartsAt, 0).UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateLesson(r.Context(), lesson); err != nil {
		writeError(w, http.StatusBadRequest, "lesson_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, mapLesson(lesson))
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	sc := sessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if sc.SelectedSchool == "" {
		writeError(w, http.StatusBadRequest, "school_not_selected")
		return
	}
	if !s.authorize(w, r, authz.OpLessonList, sc.SelectedSchool) {
		return
	}

	lessons, err := s.store.ListLessonsBySchool(r.Context(), sc.SelectedSchool, parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]lessonSummary, 0, len(lessons))
	for _, lesson := range lessons {
		resp = append(resp, mapLesson(lesson))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonId")
	if lessonID == "" {
		writeError(w, http.StatusBadRequest, "missing_lesson_id")
		return
	}

	// Load just enough of the resource to know its school; the guard
	// decides against that, never against caller-supplied input.
	schoolID, _, err := s.store.GetLessonSchool(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if !s.authorize(w, r, authz.OpLessonRead, schoolID) {
		return
	}

	lesson, err := s.store.GetLesson(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapLesson(lesson))
}

type patchLessonRequest struct {
	Title    *string `json:"title,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	StartsAt *int64  `json:"startsAt,omitempty"`
}

func (s *Server) handlePatchLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonId")
	if lessonID == "" {
		writeError(w, http.StatusBadRequest, "missing_lesson_id")
		return
	}

	schoolID, teacherID, err := s.store.GetLessonSchool(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if !s.authorize(w, r, authz.OpLessonUpdate, schoolID) {
		return
	}
	sc := sessionFromContext(r.Context())
	if !canManageLesson(sc, schoolID, teacherID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req patchLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.LessonUpdate{Notes: req.Notes}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title != "" {
			update.Title = &title
		}
	}
	if req.StartsAt != nil && *req.StartsAt > 0 {
		startsAt := time.Unix(*req.StartsAt, 0).UTC()
		update.StartsAt = &startsAt
	}

	lesson, err := s.store.UpdateLesson(r.Context(), lessonID, update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed")
		return
	}
	writeJSON(w, http.StatusOK, mapLesson(lesson))
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonId")
	if lessonID == "" {
		writeError(w, http.StatusBadRequest, "missing_lesson_id")
		return
	}

	schoolID, teacherID, err := s.store.GetLessonSchool(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if !s.authorize(w, r, authz.OpLessonDelete, schoolID) {
		return
	}
	sc := sessionFromContext(r.Context())
	if !canManageLesson(sc, schoolID, teacherID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	deleted, err := s.store.DeleteLesson(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// canManageLesson is the ownership half of the compound lesson checks:
// the role table admits teachers, this admits only the owning teacher,
// a school owner of that school, or a platform owner.
func canManageLesson(sc *SessionContext, schoolID, teacherID string) bool {
	if sc == nil {
		return false
	}
	if sc.HasPlatformGrant() {
		return true
	}
	if sc.AccountID == teacherID {
		return true
	}
	for _, m := range sc.Memberships {
		if m.SchoolID == schoolID && m.Role == authz.RoleSchoolOwner {
			return true
		}
	}
	return false
}

// Accounts

func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing_account_id")
		return
	}
	if !s.authorize(w, r, authz.OpAccountDeactivate, "") {
		return
	}

	deactivated, err := s.store.DeactivateAccount(r.Context(), accountID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deactivated {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleGrantPlatform(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing_account_id")
		return
	}
	if !s.authorize(w, r, authz.OpAccountPlatformGrant, "") {
		return
	}

	if _, err := s.store.GetAccount(r.Context(), accountID); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err := s.store.GrantPlatformOwner(r.Context(), accountID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// Helpers

// parseTenantRole accepts only school-scoped roles: the platform grant
// is never assignable through a membership endpoint.
func parseTenantRole(name string) (authz.Role, error) {
	role, err := authz.ParseRole(strings.TrimSpace(strings.ToLower(name)))
	if err != nil {
		return 0, err
	}
	if role == authz.RolePlatformOwner {
		return 0, errors.New("platform role not assignable")
	}
	return role, nil
}

func parseLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
