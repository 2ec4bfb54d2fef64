package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"botic-pipeline/internal/app"
	"botic-pipeline/internal/common/config"
	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store/memory"
)

type cliFixture struct {
	store     *memory.Store
	technical models.Role
	general   models.Role
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	ctx := context.Background()
	zero := "0"
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Bot: config.BotConfig{
			MinSecondsInStage: &zero,
			DefaultBatchSize:  50,
			MaxBatchSize:      100,
			Concurrency:       2,
		},
	}
	p, err := app.Build(ctx, cfg, zaptest.NewLogger(t), app.Options{})
	require.NoError(t, err)

	st, ok := p.Store.(*memory.Store)
	require.True(t, ok)
	f := &cliFixture{
		store:     st,
		technical: models.Role{Name: "Backend Engineer", IsTechnical: true},
		general:   models.Role{Name: "Office Manager"},
	}
	require.NoError(t, st.CreateRole(ctx, &f.technical))
	require.NoError(t, st.CreateRole(ctx, &f.general))

	previous := openPipeline
	openPipeline = func(context.Context, string, string) (*app.App, error) { return p, nil }
	t.Cleanup(func() { openPipeline = previous })
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand_AdvancesTechnicalApplications(t *testing.T) {
	f := newCLIFixture(t)
	seeded := f.store.Put(models.Application{RoleID: f.technical.ID, CurrentStatus: models.StatusApplied})
	f.store.Put(models.Application{RoleID: f.general.ID, CurrentStatus: models.StatusApplied})

	out, err := execute(t, "run", "--triggered-by", "ops@botic.io")
	require.NoError(t, err)

	var res struct {
		JobID   int64  `json:"jobId"`
		Status  string `json:"status"`
		Summary struct {
			Selected  int `json:"selected"`
			Succeeded int `json:"succeeded"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Completed", res.Status)
	assert.Equal(t, 1, res.Summary.Selected)
	assert.Equal(t, 1, res.Summary.Succeeded)

	got, err := f.store.GetApplication(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, got.CurrentStatus)

	job, err := f.store.GetBotJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "ops@botic.io", job.TriggeredBy)
}

func TestRunCommand_DryRunChangesNothing(t *testing.T) {
	f := newCLIFixture(t)
	seeded := f.store.Put(models.Application{RoleID: f.technical.ID, CurrentStatus: models.StatusApplied})

	_, err := execute(t, "run", "--dry-run")
	require.NoError(t, err)

	got, err := f.store.GetApplication(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, got.CurrentStatus)
	assert.Empty(t, f.store.AllLogs())
}

func TestRunCommand_NonPositiveBatchFails(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(t, "run", "--batch-size", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, out, `"status": "Failed"`)
}

func TestTransitionAndHistory(t *testing.T) {
	f := newCLIFixture(t)
	seeded := f.store.Put(models.Application{RoleID: f.general.ID, CurrentStatus: models.StatusApplied})
	id := itoa(seeded.ID)

	out, err := execute(t, "transition", id, "Reviewed", "--actor", "ops@botic.io", "--comment", "screened")
	require.NoError(t, err)
	assert.Contains(t, out, "Status updated from Applied to Reviewed")

	out, err = execute(t, "history", id)
	require.NoError(t, err)
	var logs []models.ActivityLog
	require.NoError(t, json.Unmarshal([]byte(out), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "ops@botic.io", logs[0].UpdatedBy)
	assert.Equal(t, models.StatusReviewed, logs[0].NewStatus)
}

func TestTransitionCommand_RequiresActor(t *testing.T) {
	f := newCLIFixture(t)
	seeded := f.store.Put(models.Application{RoleID: f.general.ID, CurrentStatus: models.StatusApplied})

	_, err := execute(t, "transition", itoa(seeded.ID), "Reviewed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--actor")
}

func TestTransitionCommand_RejectedMove(t *testing.T) {
	f := newCLIFixture(t)
	seeded := f.store.Put(models.Application{RoleID: f.general.ID, CurrentStatus: models.StatusHired})

	_, err := execute(t, "transition", itoa(seeded.ID), "Rejected", "--actor", "ops@botic.io")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTransition, apperrors.KindOf(err))
}

func TestUnlockCommand(t *testing.T) {
	f := newCLIFixture(t)
	token := "stale"
	seeded := f.store.Put(models.Application{RoleID: f.general.ID, CurrentStatus: models.StatusApplied, LockToken: &token})

	out, err := execute(t, "unlock", itoa(seeded.ID))
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)

	got, err := f.store.GetApplication(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked())

	_, err = execute(t, "unlock", "999")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.KindOf(err))
}

func TestJobCommands(t *testing.T) {
	newCLIFixture(t)

	_, err := execute(t, "run")
	require.NoError(t, err)

	out, err := execute(t, "job", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "Completed"`)

	out, err = execute(t, "jobs", "--limit", "5")
	require.NoError(t, err)
	var jobs []models.BotJob
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Len(t, jobs, 1)

	_, err = execute(t, "jobs", "--limit", "500")
	require.Error(t, err)

	_, err = execute(t, "job", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
}

func TestMigrateCommand_MemoryStoreIsNoop(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":[]}`, out)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
