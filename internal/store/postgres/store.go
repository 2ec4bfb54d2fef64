// Package postgres is the primary Store, built on database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"botic-pipeline/internal/common/database"
	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *database.PostgresClient
	db     *sql.DB
	logger logger.Logger
}

func New(client *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		client: client,
		db:     client.DB,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const applicationColumns = `a.id, a.applicant_id, a.role_id, a.current_status, a.created_at,
	a.last_automated_run_at, a.lock_token, a.version, r.name, r.is_technical`

// scanApplication reads applicationColumns followed by any extra columns.
func scanApplication(row rowScanner, extra ...interface{}) (*models.Application, error) {
	var (
		app       models.Application
		status    string
		lastRun   sql.NullTime
		lockToken sql.NullString
	)
	dest := append([]interface{}{
		&app.ID, &app.ApplicantID, &app.RoleID, &status, &app.CreatedAt,
		&lastRun, &lockToken, &app.Version, &app.RoleName, &app.IsTechnical,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	app.CurrentStatus = models.Status(status)
	if lastRun.Valid {
		t := lastRun.Time
		app.LastAutomatedRunAt = &t
	}
	if lockToken.Valid {
		tok := lockToken.String
		app.LockToken = &tok
	}
	return &app, nil
}

func (s *Store) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications a
		JOIN roles r ON r.id = a.role_id
		WHERE a.id = $1`, id)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Application", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get application", err)
	}
	return app, nil
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application, creation models.ActivityLog) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO applications (applicant_id, role_id, current_status, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, version`,
			app.ApplicantID, app.RoleID, string(app.CurrentStatus), app.CreatedAt,
		).Scan(&app.ID, &app.Version)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperrors.NewValidationError("Applicant or role does not exist", err.Error())
			}
			return apperrors.NewQueryExecutionFailedError("insert application", err)
		}

		creation.ApplicationID = app.ID
		if _, err := insertActivityLog(ctx, tx, &creation); err != nil {
			return err
		}
		return nil
	})
}

func insertActivityLog(ctx context.Context, tx *sql.Tx, entry *models.ActivityLog) (*models.ActivityLog, error) {
	var oldStatus sql.NullString
	if entry.OldStatus != nil {
		oldStatus = sql.NullString{String: string(*entry.OldStatus), Valid: true}
	}
	var comment sql.NullString
	if entry.Comment != nil {
		comment = sql.NullString{String: *entry.Comment, Valid: true}
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO activity_logs (application_id, old_status, new_status, updated_by, updated_by_role, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.ApplicationID, oldStatus, string(entry.NewStatus), entry.UpdatedBy,
		entry.UpdatedByRole, comment, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("insert activity log", err)
	}
	return entry, nil
}

func (s *Store) AcquireLock(ctx context.Context, id int64, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET lock_token = $1
		WHERE id = $2 AND lock_token IS NULL`, token, id)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("acquire lock", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("acquire lock", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.applicationExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewNotFoundError("Application", id)
	}
	return apperrors.NewLockConflictError(id)
}

func (s *Store) applicationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("check application", err)
	}
	return exists, nil
}

func (s *Store) ReleaseLock(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE applications SET lock_token = NULL WHERE id = $1`, id,
	); err != nil {
		return apperrors.NewQueryExecutionFailedError("release lock", err)
	}
	return nil
}

func (s *Store) ApplyTransition(ctx context.Context, w store.StatusWrite) (*models.ActivityLog, error) {
	var entry *models.ActivityLog

	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		var automatedAt sql.NullTime
		if w.Automated {
			automatedAt = sql.NullTime{Time: w.At, Valid: true}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE applications
			SET current_status = $1,
			    last_automated_run_at = COALESCE($2, last_automated_run_at),
			    version = version + 1
			WHERE id = $3 AND version = $4`,
			string(w.NewStatus), automatedAt, w.ApplicationID, w.ExpectedVersion,
		)
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("update status", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("update status", err)
		}
		if n == 0 {
			return apperrors.NewConcurrencyConflictError(w.ApplicationID)
		}

		old := w.OldStatus
		entry, err = insertActivityLog(ctx, tx, &models.ActivityLog{
			ApplicationID: w.ApplicationID,
			OldStatus:     &old,
			NewStatus:     w.NewStatus,
			UpdatedBy:     w.Actor,
			UpdatedByRole: w.ActorRole,
			Comment:       w.Comment,
			CreatedAt:     w.At,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) FindCandidates(ctx context.Context, f store.CandidateFilter) ([]models.Application, error) {
	excluded := make([]string, 0, len(f.Excluded))
	for _, st := range f.Excluded {
		excluded = append(excluded, string(st))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications a
		JOIN roles r ON r.id = a.role_id
		WHERE r.is_technical = TRUE
		  AND a.lock_token IS NULL
		  AND NOT (a.current_status = ANY($1))
		  AND (a.last_automated_run_at IS NULL OR a.last_automated_run_at < $2)
		ORDER BY a.id
		LIMIT $3`,
		pq.Array(excluded), f.Cutoff, f.Limit,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find candidates", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan candidate", err)
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find candidates", err)
	}
	return out, nil
}

func (s *Store) ListActivityLogs(ctx context.Context, applicationID int64) ([]models.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, old_status, new_status, updated_by, updated_by_role, comment, created_at
		FROM activity_logs
		WHERE application_id = $1
		ORDER BY created_at DESC, id DESC`, applicationID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list activity logs", err)
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var (
			entry     models.ActivityLog
			oldStatus sql.NullString
			newStatus string
			comment   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.ApplicationID, &oldStatus, &newStatus,
			&entry.UpdatedBy, &entry.UpdatedByRole, &comment, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan activity log", err)
		}
		entry.NewStatus = models.Status(newStatus)
		if oldStatus.Valid {
			st := models.Status(oldStatus.String)
			entry.OldStatus = &st
		}
		if comment.Valid {
			c := comment.String
			entry.Comment = &c
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list activity logs", err)
	}
	return logs, nil
}
