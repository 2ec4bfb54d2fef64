package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store"
)

const applicationFilterClause = `
		WHERE ($1::bigint = 0 OR a.applicant_id = $1)
		  AND ($2::boolean IS NULL OR r.is_technical = $2)`

// limitArg maps take 0 to LIMIT NULL, which postgres reads as no limit.
func limitArg(take int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(take), Valid: take > 0}
}

func (s *Store) ListApplications(ctx context.Context, f store.ApplicationFilter) ([]models.Application, int64, error) {
	var technical sql.NullBool
	if f.Technical != nil {
		technical = sql.NullBool{Bool: *f.Technical, Valid: true}
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM applications a
		JOIN roles r ON r.id = a.role_id`+applicationFilterClause,
		f.ApplicantID, technical,
	).Scan(&total); err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("count applications", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`, u.name, u.email
		FROM applications a
		JOIN roles r ON r.id = a.role_id
		JOIN users u ON u.id = a.applicant_id`+applicationFilterClause+`
		ORDER BY a.created_at DESC, a.id DESC
		OFFSET $3
		LIMIT $4`,
		f.ApplicantID, technical, f.Skip, limitArg(f.Take),
	)
	if err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("list applications", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		var name, email string
		app, err := scanApplication(rows, &name, &email)
		if err != nil {
			return nil, 0, apperrors.NewQueryExecutionFailedError("scan application", err)
		}
		app.ApplicantName = name
		app.ApplicantEmail = email
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("list applications", err)
	}
	return apps, total, nil
}

func (s *Store) CountApplicationsByStatus(ctx context.Context, applicantID int64) (map[models.Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT current_status, COUNT(*)
		FROM applications
		WHERE applicant_id = $1
		GROUP BY current_status`, applicantID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count applications by status", err)
	}
	defer rows.Close()

	counts := map[models.Status]int64{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan status count", err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count applications by status", err)
	}
	return counts, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("User", email)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get user by email", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, skip, take int) ([]models.User, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("count users", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM users
		ORDER BY id
		OFFSET $1
		LIMIT $2`, skip, limitArg(take))
	if err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("list users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, 0, apperrors.NewQueryExecutionFailedError("scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewQueryExecutionFailedError("list users", err)
	}
	return users, total, nil
}

func (s *Store) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM applications a JOIN roles r ON r.id = a.role_id WHERE r.is_technical),
			(SELECT COUNT(*) FROM applications a JOIN roles r ON r.id = a.role_id WHERE NOT r.is_technical),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM roles),
			(SELECT COUNT(*) FROM bot_jobs)`,
	).Scan(
		&stats.TechnicalApplications, &stats.NonTechnicalApplications,
		&stats.TotalUsers, &stats.TotalRoles, &stats.BotRuns,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("admin stats", err)
	}
	stats.TotalApplications = stats.TechnicalApplications + stats.NonTechnicalApplications
	return &stats, nil
}
