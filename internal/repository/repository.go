package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chalkboard/platform/internal/authz"
	"chalkboard/platform/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, display_name, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.Email, account.DisplayName, account.PasswordHash, account.Active, account.CreatedAt, account.UpdatedAt)
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, active, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, active, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email))
}

func (s *Store) scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

type AccountUpdate struct {
	DisplayName  *string
	PasswordHash *string
}

func (s *Store) UpdateAccount(ctx context.Context, accountID string, update AccountUpdate) (model.Account, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET display_name = COALESCE($1, display_name),
		    password_hash = COALESCE($2, password_hash),
		    updated_at = $3
		WHERE id = $4
	`, update.DisplayName, update.PasswordHash, time.Now().UTC(), accountID)
	if err != nil {
		return model.Account{}, err
	}
	return s.GetAccount(ctx, accountID)
}

// DeactivateAccount flips the active flag. Accounts are never hard
// deleted; their memberships are revoked separately.
func (s *Store) DeactivateAccount(ctx context.Context, accountID string, deactivatedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET active = false, updated_at = $1 WHERE id = $2 AND active = true
	`, deactivatedAt, accountID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Schools

func (s *Store) CreateSchool(ctx context.Context, school model.School) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schools (id, name, branding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, school.ID, school.Name, school.Branding, school.CreatedAt, school.UpdatedAt)
	return err
}

func (s *Store) GetSchool(ctx context.Context, schoolID string) (model.School, error) {
	var school model.School
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, branding, created_at, updated_at
		FROM schools
		WHERE id = $1
	`, schoolID)
	err := row.Scan(&school.ID, &school.Name, &school.Branding, &school.CreatedAt, &school.UpdatedAt)
	return school, err
}

func (s *Store) ListSchools(ctx context.Context, limit int) ([]model.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, branding, created_at, updated_at
		FROM schools
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var school model.School
		if err := rows.Scan(&school.ID, &school.Name, &school.Branding, &school.CreatedAt, &school.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

type SchoolUpdate struct {
	Name     *string
	Branding []byte
}

func (s *Store) UpdateSchool(ctx context.Context, schoolID string, update SchoolUpdate) (model.School, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE schools
		SET name = COALESCE($1, name),
		    branding = COALESCE($2, branding),
		    updated_at = $3
		WHERE id = $4
	`, update.Name, update.Branding, time.Now().UTC(), schoolID)
	if err != nil {
		return model.School{}, err
	}
	return s.GetSchool(ctx, schoolID)
}

// Memberships
//
// The platform grant is stored with a NULL school_id; every other row
// is unique per (account_id, school_id).

func (s *Store) GetMemberships(ctx context.Context, accountID string) ([]model.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, COALESCE(school_id::text, ''), role, created_at, updated_at
		FROM memberships
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []model.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}

func (s *Store) GetMembership(ctx context.Context, accountID, schoolID string) (model.Membership, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, COALESCE(school_id::text, ''), role, created_at, updated_at
		FROM memberships
		WHERE account_id = $1 AND school_id = $2
	`, accountID, schoolID)
	return scanMembership(row)
}

func (s *Store) ListMembersBySchool(ctx context.Context, schoolID string, limit int) ([]model.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, COALESCE(school_id::text, ''), role, created_at, updated_at
		FROM memberships
		WHERE school_id = $1
		ORDER BY created_at
		LIMIT $2
	`, schoolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, membership)
	}
	return members, rows.Err()
}

// UpsertMembership creates or re-roles a membership in one statement, so
// a role change can never leave a partially written row.
func (s *Store) UpsertMembership(ctx context.Context, membership model.Membership) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (account_id, school_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, school_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
	`, membership.AccountID, membership.SchoolID, membership.Role.String(), membership.CreatedAt, membership.UpdatedAt)
	return err
}

// UpdateMembershipRole re-roles an existing membership under a row lock.
// A missing membership surfaces as pgx.ErrNoRows rather than an insert.
func (s *Store) UpdateMembershipRole(ctx context.Context, accountID, schoolID string, role authz.Role) (model.Membership, error) {
	var membership model.Membership
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT account_id, COALESCE(school_id::text, ''), role, created_at, updated_at
			FROM memberships
			WHERE account_id = $1 AND school_id = $2
			FOR UPDATE
		`, accountID, schoolID)
		existing, err := scanMembership(row)
		if err != nil {
			return err
		}
		existing.Role = role
		existing.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE memberships SET role = $1, updated_at = $2
			WHERE account_id = $3 AND school_id = $4
		`, role.String(), existing.UpdatedAt, accountID, schoolID); err != nil {
			return err
		}
		membership = existing
		return nil
	})
	return membership, err
}

// GrantPlatformOwner is idempotent. NULL school_id rows do not collide
// on the (account_id, school_id) unique index, so the insert itself
// checks for an existing grant instead of relying on ON CONFLICT.
func (s *Store) GrantPlatformOwner(ctx context.Context, accountID string, grantedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (account_id, school_id, role, created_at, updated_at)
		SELECT $1, NULL, $2, $3, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM memberships WHERE account_id = $1 AND school_id IS NULL
		)
	`, accountID, authz.RolePlatformOwner.String(), grantedAt)
	return err
}

// DeleteMembership revokes tenant-scoped capability immediately: the
// next decision re-reads memberships and finds nothing.
func (s *Store) DeleteMembership(ctx context.Context, accountID, schoolID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM memberships WHERE account_id = $1 AND school_id = $2
	`, accountID, schoolID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanMembership(row pgx.Row) (model.Membership, error) {
	var membership model.Membership
	var roleName string
	if err := row.Scan(
		&membership.AccountID,
		&membership.SchoolID,
		&roleName,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	); err != nil {
		return model.Membership{}, err
	}
	role, err := authz.ParseRole(roleName)
	if err != nil {
		return model.Membership{}, err
	}
	membership.Role = role
	return membership, nil
}

// Lessons

func (s *Store) CreateLesson(ctx context.Context, lesson model.Lesson) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lessons (id, school_id, teacher_id, title, notes, starts_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, lesson.ID, lesson.SchoolID, lesson.TeacherID, lesson.Title, lesson.Notes, lesson.StartsAt, lesson.CreatedAt, lesson.UpdatedAt)
	return err
}

func (s *Store) GetLesson(ctx context.Context, lessonID string) (model.Lesson, error) {
	var lesson model.Lesson
	row := s.pool.QueryRow(ctx, `
		SELECT id, school_id, teacher_id, title, notes, starts_at, created_at, updated_at
		FROM lessons
		WHERE id = $1
	`, lessonID)
	err := row.Scan(
		&lesson.ID,
		&lesson.SchoolID,
		&lesson.TeacherID,
		&lesson.Title,
		&lesson.Notes,
		&lesson.StartsAt,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	return lesson, err
}

// GetLessonSchool loads only what the request guard needs to derive the
// target tenant: the lesson's school id and owning teacher.
func (s *Store) GetLessonSchool(ctx context.Context, lessonID string) (schoolID, teacherID string, err error) {
	row := s.pool.QueryRow(ctx, `SELECT school_id, teacher_id FROM lessons WHERE id = $1`, lessonID)
	err = row.Scan(&schoolID, &teacherID)
	return schoolID, teacherID, err
}

func (s *Store) ListLessonsBySchool(ctx context.Context, schoolID string, limit int) ([]model.Lesson, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, school_id, teacher_id, title, notes, starts_at, created_at, updated_at
		FROM lessons
		WHERE school_id = $1
		ORDER BY starts_at
		LIMIT $2
	`, schoolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		var lesson model.Lesson
		if err := rows.Scan(
			&lesson.ID,
			&lesson.SchoolID,
			&lesson.TeacherID,
			&lesson.Title,
			&lesson.Notes,
			&lesson.StartsAt,
			&lesson.CreatedAt,
			&lesson.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

type LessonUpdate struct {
	Title    *string
	Notes    *string
	StartsAt *time.Time
}

func (s *Store) UpdateLesson(ctx context.Context, lessonID string, update LessonUpdate) (model.Lesson, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE lessons
		SET title = COALESCE($1, title),
		    notes = COALESCE($2, notes),
		    starts_at = COALESCE($3, starts_at),
		    updated_at = $4
		WHERE id = $5
	`, update.Title, update.Notes, update.StartsAt, time.Now().UTC(), lessonID)
	if err != nil {
		return model.Lesson{}, err
	}
	return s.GetLesson(ctx, lessonID)
}

func (s *Store) DeleteLesson(ctx context.Context, lessonID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, lessonID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
