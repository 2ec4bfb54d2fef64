package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
)

const botJobColumns = `id, triggered_by, triggered_at, status, dry_run, batch_size,
	total_processed, total_succeeded, total_failed, total_skipped, details, finished_at`

func scanBotJob(row rowScanner) (*models.BotJob, error) {
	var (
		job                                   models.BotJob
		status                                string
		processed, succeeded, failed, skipped sql.NullInt64
		details                               sql.NullString
		finishedAt                            sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.TriggeredBy, &job.TriggeredAt, &status, &job.DryRun,
		&job.BatchSize, &processed, &succeeded, &failed, &skipped, &details, &finishedAt); err != nil {
		return nil, err
	}
	job.Status = models.BotJobStatus(status)
	job.TotalProcessed = nullableInt(processed)
	job.TotalSucceeded = nullableInt(succeeded)
	job.TotalFailed = nullableInt(failed)
	job.TotalSkipped = nullableInt(skipped)
	job.Details = details.String
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func (s *Store) CreateBotJob(ctx context.Context, job *models.BotJob) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bot_jobs (triggered_by, triggered_at, status, dry_run, batch_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		job.TriggeredBy, job.TriggeredAt, string(job.Status), job.DryRun, job.BatchSize,
	).Scan(&job.ID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("insert bot job", err)
	}
	return nil
}

func (s *Store) FinalizeBotJob(ctx context.Context, id int64, outcome models.BotJobOutcome) error {
	if err := outcome.Validate(); err != nil {
		return apperrors.NewValidationError("Invalid bot job outcome", err.Error())
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bot_jobs
		SET status = $1, total_processed = $2, total_succeeded = $3, total_failed = $4,
		    total_skipped = $5, details = $6, finished_at = $7
		WHERE id = $8 AND status = 'Running'`,
		string(outcome.Status), outcome.Processed, outcome.Succeeded, outcome.Failed,
		outcome.Skipped, outcome.Details, outcome.FinishedAt, id,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("finalize bot job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("finalize bot job", err)
	}
	if n == 0 {
		if _, err := s.GetBotJob(ctx, id); err != nil {
			return err
		}
		return apperrors.NewValidationError("Bot job already finalized", "")
	}
	return nil
}

func (s *Store) GetBotJob(ctx context.Context, id int64) (*models.BotJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+botJobColumns+` FROM bot_jobs WHERE id = $1`, id)
	job, err := scanBotJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Bot job", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get bot job", err)
	}
	return job, nil
}

func (s *Store) ListBotJobs(ctx context.Context, limit int) ([]models.BotJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+botJobColumns+`
		FROM bot_jobs
		ORDER BY triggered_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list bot jobs", err)
	}
	defer rows.Close()

	jobs := []models.BotJob{}
	for rows.Next() {
		job, err := scanBotJob(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan bot job", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list bot jobs", err)
	}
	return jobs, nil
}

func (s *Store) BotStats(ctx context.Context, recent int) (*models.BotStats, error) {
	stats := &models.BotStats{TransitionsByStatus: map[models.Status]int64{}}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_logs WHERE updated_by_role = $1`, models.ActorRoleBot,
	).Scan(&stats.TotalBotTransitions); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count bot transitions", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT new_status, COUNT(*)
		FROM activity_logs
		WHERE updated_by_role = $1
		GROUP BY new_status`, models.ActorRoleBot)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("group bot transitions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan bot transitions", err)
		}
		stats.TransitionsByStatus[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("group bot transitions", err)
	}

	jobs, err := s.ListBotJobs(ctx, recent)
	if err != nil {
		return nil, err
	}
	stats.RecentJobs = jobs
	return stats, nil
}
