package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store"
)

func seedRoles(t *testing.T, s *Store) (tech, nonTech models.Role) {
	t.Helper()
	ctx := context.Background()
	tech = models.Role{Name: "Backend Engineer", IsTechnical: true}
	nonTech = models.Role{Name: "Recruiter"}
	require.NoError(t, s.CreateRole(ctx, &tech))
	require.NoError(t, s.CreateRole(ctx, &nonTech))
	return tech, nonTech
}

func TestFindCandidates_Filters(t *testing.T) {
	s := New()
	tech, nonTech := seedRoles(t, s)
	now := time.Now().UTC()
	recent := now.Add(-time.Minute)
	old := now.Add(-48 * time.Hour)
	token := "held"

	eligible := s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusApplied})
	cooled := s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusReviewed, LastAutomatedRunAt: &old})
	s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusReviewed, LastAutomatedRunAt: &recent})
	s.Put(models.Application{RoleID: nonTech.ID, CurrentStatus: models.StatusApplied})
	s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusOffer})
	s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusHired})
	s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusApplied, LockToken: &token})

	got, err := s.FindCandidates(context.Background(), store.CandidateFilter{
		Cutoff:   now.Add(-time.Hour),
		Excluded: []models.Status{models.StatusHired, models.StatusOffer},
		Limit:    10,
	})
	require.NoError(t, err)

	ids := []int64{}
	for _, app := range got {
		ids = append(ids, app.ID)
	}
	assert.Equal(t, []int64{eligible.ID, cooled.ID}, ids)

	limited, err := s.FindCandidates(context.Background(), store.CandidateFilter{
		Cutoff: now, Excluded: []models.Status{models.StatusHired, models.StatusOffer}, Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestApplyTransition_VersionCheck(t *testing.T) {
	s := New()
	tech, _ := seedRoles(t, s)
	app := s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusApplied})
	ctx := context.Background()

	write := store.StatusWrite{
		ApplicationID:   app.ID,
		ExpectedVersion: app.Version,
		OldStatus:       models.StatusApplied,
		NewStatus:       models.StatusReviewed,
		Automated:       true,
		At:              time.Now().UTC(),
		Actor:           "bot@botic.local",
		ActorRole:       models.ActorRoleBot,
	}
	_, err := s.ApplyTransition(ctx, write)
	require.NoError(t, err)

	_, err = s.ApplyTransition(ctx, write)
	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, got.CurrentStatus)
	assert.Equal(t, app.Version+1, got.Version)
	assert.NotNil(t, got.LastAutomatedRunAt)
	assert.Len(t, s.AllLogs(), 1)
}

func TestLocking(t *testing.T) {
	s := New()
	tech, _ := seedRoles(t, s)
	app := s.Put(models.Application{RoleID: tech.ID, CurrentStatus: models.StatusApplied})
	ctx := context.Background()

	require.NoError(t, s.AcquireLock(ctx, app.ID, "a"))
	assert.ErrorIs(t, s.AcquireLock(ctx, app.ID, "b"), apperrors.ErrLockConflict)
	assert.ErrorIs(t, s.AcquireLock(ctx, 999, "c"), apperrors.ErrNotFound)

	require.NoError(t, s.ReleaseLock(ctx, app.ID))
	require.NoError(t, s.ReleaseLock(ctx, app.ID))
	require.NoError(t, s.AcquireLock(ctx, app.ID, "d"))
}

func TestListActivityLogs_NewestFirstWithIDTiebreak(t *testing.T) {
	s := New()
	tech, _ := seedRoles(t, s)
	user := models.User{Name: "Ana", Email: "ana@example.com"}
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &user))

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	app := &models.Application{ApplicantID: user.ID, RoleID: tech.ID, CurrentStatus: models.StatusApplied, CreatedAt: at}
	require.NoError(t, s.CreateApplication(ctx, app, models.ActivityLog{
		NewStatus: models.StatusApplied, UpdatedBy: user.Email, UpdatedByRole: models.ActorRoleApplicant, CreatedAt: at,
	}))
	_, err := s.ApplyTransition(ctx, store.StatusWrite{
		ApplicationID: app.ID, ExpectedVersion: 1, OldStatus: models.StatusApplied,
		NewStatus: models.StatusReviewed, At: at, Actor: "admin@botic.local", ActorRole: models.ActorRoleAdmin,
	})
	require.NoError(t, err)

	logs, err := s.ListActivityLogs(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.StatusReviewed, logs[0].NewStatus)
	assert.Nil(t, logs[1].OldStatus)
}

func TestBotJobs_FinalizeOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := &models.BotJob{TriggeredBy: "admin@botic.local", TriggeredAt: time.Now(), Status: models.BotJobRunning, BatchSize: 10}
	require.NoError(t, s.CreateBotJob(ctx, job))

	outcome := models.BotJobOutcome{Status: models.BotJobCompleted, Processed: 2, Succeeded: 2, FinishedAt: time.Now()}
	require.NoError(t, s.FinalizeBotJob(ctx, job.ID, outcome))
	assert.ErrorIs(t, s.FinalizeBotJob(ctx, job.ID, outcome), apperrors.ErrValidation)

	got, err := s.GetBotJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BotJobCompleted, got.Status)
	require.NotNil(t, got.TotalSucceeded)
	assert.Equal(t, 2, *got.TotalSucceeded)
	assert.NotNil(t, got.FinishedAt)
}

func TestListApplications_FiltersAndPages(t *testing.T) {
	s := New()
	ctx := context.Background()
	tech, nonTech := seedRoles(t, s)
	asha := models.User{Name: "Asha", Email: "asha@example.com"}
	ravi := models.User{Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, s.CreateUser(ctx, &asha))
	require.NoError(t, s.CreateUser(ctx, &ravi))

	base := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	first := s.Put(models.Application{ApplicantID: asha.ID, RoleID: tech.ID, CreatedAt: base})
	second := s.Put(models.Application{ApplicantID: asha.ID, RoleID: nonTech.ID, CreatedAt: base.Add(time.Hour)})
	third := s.Put(models.Application{ApplicantID: ravi.ID, RoleID: nonTech.ID, CreatedAt: base.Add(2 * time.Hour)})

	all, total, err := s.ListApplications(ctx, store.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "Ravi", all[0].ApplicantName)
	assert.Equal(t, "ravi@example.com", all[0].ApplicantEmail)
	assert.Equal(t, "Recruiter", all[0].RoleName)

	technical := false
	page, total, err := s.ListApplications(ctx, store.ApplicationFilter{Technical: &technical, Skip: 1, Take: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	mine, total, err := s.ListApplications(ctx, store.ApplicationFilter{ApplicantID: asha.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	beyond, total, err := s.ListApplications(ctx, store.ApplicationFilter{Skip: 10, Take: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, beyond)
}

func TestUsersAndDashboardCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	tech, nonTech := seedRoles(t, s)
	asha := models.User{Name: "Asha", Email: "asha@example.com"}
	ravi := models.User{Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, s.CreateUser(ctx, &asha))
	require.NoError(t, s.CreateUser(ctx, &ravi))

	s.Put(models.Application{ApplicantID: asha.ID, RoleID: tech.ID, CurrentStatus: models.StatusHired})
	s.Put(models.Application{ApplicantID: asha.ID, RoleID: nonTech.ID, CurrentStatus: models.StatusApplied})
	s.Put(models.Application{ApplicantID: ravi.ID, RoleID: nonTech.ID, CurrentStatus: models.StatusApplied})
	require.NoError(t, s.CreateBotJob(ctx, &models.BotJob{TriggeredBy: "ops", Status: models.BotJobRunning}))

	found, err := s.GetUserByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.Equal(t, asha.ID, found.ID)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	users, total, err := s.ListUsers(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, users, 1)
	assert.Equal(t, ravi.ID, users[0].ID)

	counts, err := s.CountApplicationsByStatus(ctx, asha.ID)
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int64{models.StatusHired: 1, models.StatusApplied: 1}, counts)

	stats, err := s.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AdminStats{
		TotalApplications:        3,
		TechnicalApplications:    1,
		NonTechnicalApplications: 2,
		TotalUsers:               2,
		TotalRoles:               2,
		BotRuns:                  1,
	}, *stats)
}
