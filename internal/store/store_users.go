package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewUser carries the fields required to create an account.
type NewUser struct {
	Email           string
	Name            string
	PasswordHash    string
	Role            Role
	ExpertiseLevel  string
	YearsExperience *int
	TrainingDate    string
	Institution     string
	Specializations []string
}

// UserUpdate carries optional field updates; nil fields are left untouched.
type UserUpdate struct {
	Email           *string
	Name            *string
	PasswordHash    *string
	Role            *Role
	ExpertiseLevel  *string
	YearsExperience *int
	TrainingDate    *string
	Institution     *string
	Specializations []string
	IsActive        *bool
}

// CreateUser inserts a new user and returns it.
func (s *Store) CreateUser(ctx context.Context, user NewUser) (*User, error) {
	specializations, err := marshalStrings(user.Specializations)
	if err != nil {
		return nil, err
	}

	timestamp := nowTimestamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (
            email, name, password_hash, role, expertise_level,
            years_experience, training_date, institution, specializations,
            is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.Name,
		user.PasswordHash,
		string(user.Role),
		nullableString(user.ExpertiseLevel),
		nullableInt(user.YearsExperience),
		nullableString(user.TrainingDate),
		nullableString(user.Institution),
		specializations,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s already registered: %w", user.Email, ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUserAnyStatus(ctx, id)
}

// GetUserByEmail returns an active user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		userSelect+" WHERE email = ? AND is_active = 1",
		strings.ToLower(strings.TrimSpace(email)),
	)
	return scanUser(row)
}

// GetUser returns an active user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+" WHERE id = ? AND is_active = 1", id)
	return scanUser(row)
}

// GetUserAnyStatus returns a user by ID regardless of active flag.
func (s *Store) GetUserAnyStatus(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+" WHERE id = ?", id)
	return scanUser(row)
}

// ListUsers returns users ordered by name, optionally including deactivated accounts.
func (s *Store) ListUsers(ctx context.Context, includeInactive bool) ([]*User, error) {
	query := userSelect + " WHERE is_active = 1 ORDER BY name"
	if includeInactive {
		query = userSelect + " ORDER BY name"
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListSpecialists returns all active specialist accounts ordered by name.
func (s *Store) ListSpecialists(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		userSelect+" WHERE role = ? AND is_active = 1 ORDER BY name",
		string(RoleSpecialist),
	)
	if err != nil {
		return nil, fmt.Errorf("list specialists: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// UpdateUser applies the non-nil fields of update to a user.
func (s *Store) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	assignments := make([]string, 0, 10)
	params := make([]any, 0, 11)

	if update.Email != nil {
		assignments = append(assignments, "email = ?")
		params = append(params, strings.ToLower(strings.TrimSpace(*update.Email)))
	}
	if update.Name != nil {
		assignments = append(assignments, "name = ?")
		params = append(params, *update.Name)
	}
	if update.PasswordHash != nil {
		assignments = append(assignments, "password_hash = ?")
		params = append(params, *update.PasswordHash)
	}
	if update.Role != nil {
		assignments = append(assignments, "role = ?")
		params = append(params, string(*update.Role))
	}
	if update.ExpertiseLevel != nil {
		assignments = append(assignments, "expertise_level = ?")
		params = append(params, nullableString(*update.ExpertiseLevel))
	}
	if update.YearsExperience != nil {
		assignments = append(assignments, "years_experience = ?")
		params = append(params, *update.YearsExperience)
	}
	if update.TrainingDate != nil {
		assignments = append(assignments, "training_date = ?")
		params = append(params, nullableString(*update.TrainingDate))
	}
	if update.Institution != nil {
		assignments = append(assignments, "institution = ?")
		params = append(params, nullableString(*update.Institution))
	}
	if update.Specializations != nil {
		marshaled, err := marshalStrings(update.Specializations)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, "specializations = ?")
		params = append(params, marshaled)
	}
	if update.IsActive != nil {
		assignments = append(assignments, "is_active = ?")
		params = append(params, boolToInt(*update.IsActive))
	}

	if len(assignments) == 0 {
		return s.GetUserAnyStatus(ctx, id)
	}

	assignments = append(assignments, "updated_at = ?")
	params = append(params, nowTimestamp(), id)

	query := "UPDATE users SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return s.GetUserAnyStatus(ctx, id)
}

// DeactivateUser soft-deletes a user. Their assignments and completed work remain.
func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?",
		nowTimestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

const userSelect = `SELECT id, email, name, password_hash, role, expertise_level,
    years_experience, training_date, institution, specializations, is_active,
    created_at, updated_at FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user            User
		role            string
		expertiseLevel  sql.NullString
		yearsExperience sql.NullInt64
		trainingDate    sql.NullString
		institution     sql.NullString
		specializations sql.NullString
		isActive        int
		createdAt       string
		updatedAt       string
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &role,
		&expertiseLevel, &yearsExperience, &trainingDate, &institution,
		&specializations, &isActive, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Role = Role(role)
	user.ExpertiseLevel = expertiseLevel.String
	user.YearsExperience = intPointer(yearsExperience)
	user.TrainingDate = trainingDate.String
	user.Institution = institution.String
	user.IsActive = isActive != 0
	if user.Specializations, err = unmarshalStrings(specializations); err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUsers(rows *sql.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
