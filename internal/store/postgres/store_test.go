package postgres

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botic-pipeline/internal/common/database"
	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(database.NewPostgresFromDB(db), logger.NewNoOpLogger()), mock
}

var applicationRowColumns = []string{
	"id", "applicant_id", "role_id", "current_status", "created_at",
	"last_automated_run_at", "lock_token", "version", "name", "is_technical",
}

func TestAcquireLock_Succeeds(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET lock_token = $1 WHERE id = $2 AND lock_token IS NULL")).
		WithArgs("tok-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.AcquireLock(context.Background(), 7, "tok-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireLock_HeldIsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE applications SET lock_token").
		WithArgs("tok-2", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.AcquireLock(context.Background(), 7, "tok-2")
	assert.ErrorIs(t, err, apperrors.ErrLockConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireLock_MissingIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE applications SET lock_token").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.AcquireLock(context.Background(), 99, "tok")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLock_IsUnconditional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET lock_token = NULL WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.ReleaseLock(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransition_WritesStatusAndLog(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	comment := "Automated transition from Applied to Reviewed"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET current_status = \\$1").
		WithArgs("Reviewed", at, int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO activity_logs").
		WithArgs(int64(7), "Applied", "Reviewed", "bot@botic.local", "Bot", comment, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectCommit()

	entry, err := s.ApplyTransition(context.Background(), store.StatusWrite{
		ApplicationID:   7,
		ExpectedVersion: 3,
		OldStatus:       models.StatusApplied,
		NewStatus:       models.StatusReviewed,
		Automated:       true,
		At:              at,
		Actor:           "bot@botic.local",
		ActorRole:       models.ActorRoleBot,
		Comment:         &comment,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(41), entry.ID)
	require.NotNil(t, entry.OldStatus)
	assert.Equal(t, models.StatusApplied, *entry.OldStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransition_StaleVersionRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET current_status").
		WithArgs("Offer", nil, int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.ApplyTransition(context.Background(), store.StatusWrite{
		ApplicationID:   7,
		ExpectedVersion: 3,
		OldStatus:       models.StatusHRInterview,
		NewStatus:       models.StatusOffer,
		At:              time.Now(),
		Actor:           "admin@botic.local",
		ActorRole:       models.ActorRoleAdmin,
	})

	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type anyStringArray struct{ want []string }

func (a anyStringArray) Match(v driver.Value) bool {
	var got pq.StringArray
	if err := got.Scan(v); err != nil {
		return false
	}
	return assert.ObjectsAreEqual(a.want, []string(got))
}

func TestFindCandidates(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	created := cutoff.Add(-48 * time.Hour)

	rows := sqlmock.NewRows(applicationRowColumns).
		AddRow(int64(1), int64(10), int64(2), "Applied", created, nil, nil, int64(1), "Backend Engineer", true).
		AddRow(int64(4), int64(11), int64(2), "CodingRound", created, created, nil, int64(3), "Backend Engineer", true)

	mock.ExpectQuery("WHERE r.is_technical = TRUE AND a.lock_token IS NULL").
		WithArgs(anyStringArray{want: []string{"Hired", "Offer"}}, cutoff, 50).
		WillReturnRows(rows)

	apps, err := s.FindCandidates(context.Background(), store.CandidateFilter{
		Cutoff:   cutoff,
		Excluded: []models.Status{models.StatusHired, models.StatusOffer},
		Limit:    50,
	})

	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, models.StatusApplied, apps[0].CurrentStatus)
	assert.Nil(t, apps[0].LastAutomatedRunAt)
	assert.NotNil(t, apps[1].LastAutomatedRunAt)
	assert.True(t, apps[1].IsTechnical)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetApplication_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM applications a JOIN roles r").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))

	_, err := s.GetApplication(context.Background(), 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListActivityLogs_NewestFirst(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "application_id", "old_status", "new_status", "updated_by", "updated_by_role", "comment", "created_at",
		}).
			AddRow(int64(2), int64(7), "Applied", "Reviewed", "bot@botic.local", "Bot", "Automated transition from Applied to Reviewed", now).
			AddRow(int64(1), int64(7), nil, "Applied", "ana@example.com", "Applicant", "Application created", now.Add(-time.Hour)))

	logs, err := s.ListActivityLogs(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(2), logs[0].ID)
	assert.Nil(t, logs[1].OldStatus)
	require.NotNil(t, logs[1].Comment)
	assert.Equal(t, "Application created", *logs[1].Comment)
}

func TestCreateRole_DuplicateIsValidationError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("Backend Engineer", true).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateRole(context.Background(), &models.Role{Name: "Backend Engineer", IsTechnical: true})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "Role already exists")
}

func TestFinalizeBotJob_SingleConditionalUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	finished := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $8 AND status = 'Running'")).
		WithArgs("Completed", 3, 2, 1, 1, "Processed 3 applications. Succeeded: 2, Failed: 1, Skipped (locked): 1", finished, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.FinalizeBotJob(context.Background(), 12, models.BotJobOutcome{
		Status:     models.BotJobCompleted,
		Processed:  3,
		Succeeded:  2,
		Failed:     1,
		Skipped:    1,
		Details:    "Processed 3 applications. Succeeded: 2, Failed: 1, Skipped (locked): 1",
		FinishedAt: finished,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeBotJob_RejectsInconsistentCounts(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.FinalizeBotJob(context.Background(), 12, models.BotJobOutcome{
		Status:    models.BotJobCompleted,
		Processed: 3,
		Succeeded: 1,
		Failed:    1,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeBotJob_AlreadyFinal(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE bot_jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM bot_jobs WHERE id = \\$1").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "triggered_by", "triggered_at", "status", "dry_run", "batch_size",
			"total_processed", "total_succeeded", "total_failed", "total_skipped", "details", "finished_at",
		}).AddRow(int64(12), "admin@botic.local", now, "Failed", false, 50, nil, nil, nil, nil, "boom", now))

	err := s.FinalizeBotJob(context.Background(), 12, models.BotJobOutcome{
		Status:     models.BotJobFailed,
		Details:    "again",
		FinishedAt: now,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesPendingFiles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM schema_version").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS roles").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_version").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsApplied(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListApplications_JoinsApplicantAndPages(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	technical := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications a JOIN roles r ON r.id = a.role_id WHERE")).
		WithArgs(int64(0), true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = a.applicant_id")).
		WithArgs(int64(0), true, 10, 5).
		WillReturnRows(sqlmock.NewRows(append(applicationRowColumns, "name", "email")).
			AddRow(int64(3), int64(10), int64(2), "Reviewed", created, nil, nil, int64(2), "Backend Engineer", true, "Asha", "asha@example.com"))

	apps, total, err := s.ListApplications(context.Background(), store.ApplicationFilter{
		Technical: &technical,
		Skip:      10,
		Take:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, apps, 1)
	assert.Equal(t, "Asha", apps[0].ApplicantName)
	assert.Equal(t, "asha@example.com", apps[0].ApplicantEmail)
	assert.Equal(t, "Backend Engineer", apps[0].RoleName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountApplicationsByStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("GROUP BY current_status").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"current_status", "count"}).
			AddRow("Applied", int64(2)).
			AddRow("Hired", int64(1)))

	counts, err := s.CountApplicationsByStatus(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int64{models.StatusApplied: 2, models.StatusHired: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	_, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListUsers_OrderedById(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery("ORDER BY id OFFSET \\$1 LIMIT \\$2").
		WithArgs(0, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(int64(1), "Asha", "asha@example.com").
			AddRow(int64(2), "Ravi", "ravi@example.com"))

	users, total, err := s.ListUsers(context.Background(), 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, users, 2)
	assert.Equal(t, "Ravi", users[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM bot_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"technical", "non_technical", "users", "roles", "bot_runs"}).
			AddRow(int64(4), int64(6), int64(9), int64(3), int64(2)))

	stats, err := s.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalApplications)
	assert.Equal(t, int64(4), stats.TechnicalApplications)
	assert.Equal(t, int64(9), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.BotRuns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
