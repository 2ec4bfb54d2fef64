package postgres

import (
	"context"
	"database/sql"
	"errors"

	"botic-pipeline/internal/common/database"
	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
)

func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, is_technical) VALUES ($1, $2)
		RETURNING id`, role.Name, role.IsTechnical,
	).Scan(&role.ID)
	if database.IsUniqueViolation(err) {
		return apperrors.NewValidationError("Role already exists", role.Name)
	}
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("insert role", err)
	}
	return nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_technical FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.IsTechnical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Role", name)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get role", err)
	}
	return &role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, is_technical FROM roles ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list roles", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsTechnical); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan role", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email) VALUES ($1, $2)
		RETURNING id`, user.Name, user.Email,
	).Scan(&user.ID)
	if database.IsUniqueViolation(err) {
		return apperrors.NewValidationError("User already exists", user.Email)
	}
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("insert user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Applicant", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get user", err)
	}
	return &user, nil
}
