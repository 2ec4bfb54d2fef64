// Package memory is an in-process Store for tests and local development.
// A single mutex makes every method atomic, which satisfies the conditional
// single-row write contract.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	roles        map[int64]models.Role
	users        map[int64]models.User
	applications map[int64]models.Application
	logs         []models.ActivityLog
	jobs         map[int64]models.BotJob

	nextRoleID, nextUserID, nextAppID, nextLogID, nextJobID int64
}

func New() *Store {
	return &Store{
		roles:        map[int64]models.Role{},
		users:        map[int64]models.User{},
		applications: map[int64]models.Application{},
		jobs:         map[int64]models.BotJob{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// withRole fills the joined role columns.
func (s *Store) withRole(app models.Application) models.Application {
	if role, ok := s.roles[app.RoleID]; ok {
		app.RoleName = role.Name
		app.IsTechnical = role.IsTechnical
	}
	return app
}

func copyApplication(app models.Application) *models.Application {
	out := app
	if app.LastAutomatedRunAt != nil {
		t := *app.LastAutomatedRunAt
		out.LastAutomatedRunAt = &t
	}
	if app.LockToken != nil {
		tok := *app.LockToken
		out.LockToken = &tok
	}
	return &out
}

func (s *Store) GetApplication(_ context.Context, id int64) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Application", id)
	}
	return copyApplication(s.withRole(app)), nil
}

func (s *Store) CreateApplication(_ context.Context, app *models.Application, creation models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[app.ApplicantID]; !ok {
		return apperrors.NewValidationError("Applicant or role does not exist", "applicant")
	}
	if _, ok := s.roles[app.RoleID]; !ok {
		return apperrors.NewValidationError("Applicant or role does not exist", "role")
	}

	s.nextAppID++
	app.ID = s.nextAppID
	app.Version = 1
	app.LockToken = nil
	s.applications[app.ID] = *copyApplication(*app)

	creation.ApplicationID = app.ID
	s.appendLog(creation)
	return nil
}

func (s *Store) appendLog(entry models.ActivityLog) models.ActivityLog {
	s.nextLogID++
	entry.ID = s.nextLogID
	s.logs = append(s.logs, entry)
	return entry
}

func (s *Store) AcquireLock(_ context.Context, id int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return apperrors.NewNotFoundError("Application", id)
	}
	if app.LockToken != nil {
		return apperrors.NewLockConflictError(id)
	}
	app.LockToken = &token
	s.applications[id] = app
	return nil
}

func (s *Store) ReleaseLock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app, ok := s.applications[id]; ok {
		app.LockToken = nil
		s.applications[id] = app
	}
	return nil
}

func (s *Store) ApplyTransition(_ context.Context, w store.StatusWrite) (*models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[w.ApplicationID]
	if !ok || app.Version != w.ExpectedVersion {
		return nil, apperrors.NewConcurrencyConflictError(w.ApplicationID)
	}

	app.CurrentStatus = w.NewStatus
	app.Version++
	if w.Automated {
		at := w.At
		app.LastAutomatedRunAt = &at
	}
	s.applications[app.ID] = app

	old := w.OldStatus
	entry := s.appendLog(models.ActivityLog{
		ApplicationID: w.ApplicationID,
		OldStatus:     &old,
		NewStatus:     w.NewStatus,
		UpdatedBy:     w.Actor,
		UpdatedByRole: w.ActorRole,
		Comment:       w.Comment,
		CreatedAt:     w.At,
	})
	return &entry, nil
}

func (s *Store) FindCandidates(_ context.Context, f store.CandidateFilter) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excluded := make(map[models.Status]bool, len(f.Excluded))
	for _, st := range f.Excluded {
		excluded[st] = true
	}

	ids := make([]int64, 0, len(s.applications))
	for id := range s.applications {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []models.Application{}
	for _, id := range ids {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		app := s.withRole(s.applications[id])
		if !app.IsTechnical || app.LockToken != nil || excluded[app.CurrentStatus] {
			continue
		}
		if app.LastAutomatedRunAt != nil && !app.LastAutomatedRunAt.Before(f.Cutoff) {
			continue
		}
		out = append(out, *copyApplication(app))
	}
	return out, nil
}

func (s *Store) ListActivityLogs(_ context.Context, applicationID int64) ([]models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ActivityLog{}
	for _, entry := range s.logs {
		if entry.ApplicationID == applicationID {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// withApplicant fills the joined applicant columns.
func (s *Store) withApplicant(app models.Application) models.Application {
	if user, ok := s.users[app.ApplicantID]; ok {
		app.ApplicantName = user.Name
		app.ApplicantEmail = user.Email
	}
	return app
}

func (s *Store) ListApplications(_ context.Context, f store.ApplicationFilter) ([]models.Application, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Application{}
	for _, app := range s.applications {
		app = s.withApplicant(s.withRole(app))
		if f.ApplicantID != 0 && app.ApplicantID != f.ApplicantID {
			continue
		}
		if f.Technical != nil && app.IsTechnical != *f.Technical {
			continue
		}
		matched = append(matched, *copyApplication(app))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	return window(matched, f.Skip, f.Take), total, nil
}

// window applies skip/take; take 0 keeps the rest.
func window[T any](items []T, skip, take int) []T {
	if skip >= len(items) {
		return items[:0]
	}
	items = items[skip:]
	if take > 0 && len(items) > take {
		items = items[:take]
	}
	return items
}

func (s *Store) CountApplicationsByStatus(_ context.Context, applicantID int64) (map[models.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[models.Status]int64{}
	for _, app := range s.applications {
		if app.ApplicantID == applicantID {
			counts[app.CurrentStatus]++
		}
	}
	return counts, nil
}

func (s *Store) CreateRole(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return apperrors.NewValidationError("Role already exists", role.Name)
		}
	}
	s.nextRoleID++
	role.ID = s.nextRoleID
	s.roles[role.ID] = *role
	return nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, role := range s.roles {
		if role.Name == name {
			r := role
			return &r, nil
		}
	}
	return nil, apperrors.NewNotFoundError("Role", name)
}

func (s *Store) ListRoles(context.Context) ([]models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]models.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return apperrors.NewValidationError("User already exists", user.Email)
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Applicant", id)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("User", email)
}

func (s *Store) ListUsers(_ context.Context, skip, take int) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return window(users, skip, take), int64(len(users)), nil
}

func (s *Store) CreateBotJob(_ context.Context, job *models.BotJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextJobID++
	job.ID = s.nextJobID
	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) FinalizeBotJob(_ context.Context, id int64, outcome models.BotJobOutcome) error {
	if err := outcome.Validate(); err != nil {
		return apperrors.NewValidationError("Invalid bot job outcome", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return apperrors.NewNotFoundError("Bot job", id)
	}
	if job.Status != models.BotJobRunning {
		return apperrors.NewValidationError("Bot job already finalized", "")
	}
	outcome.Apply(&job)
	s.jobs[id] = job
	return nil
}

func (s *Store) GetBotJob(_ context.Context, id int64) (*models.BotJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Bot job", id)
	}
	return &job, nil
}

func (s *Store) ListBotJobs(_ context.Context, limit int) ([]models.BotJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentJobs(limit), nil
}

func (s *Store) recentJobs(limit int) []models.BotJob {
	jobs := make([]models.BotJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].TriggeredAt.Equal(jobs[j].TriggeredAt) {
			return jobs[i].TriggeredAt.After(jobs[j].TriggeredAt)
		}
		return jobs[i].ID > jobs[j].ID
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

func (s *Store) BotStats(_ context.Context, recent int) (*models.BotStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.BotStats{TransitionsByStatus: map[models.Status]int64{}}
	for _, entry := range s.logs {
		if entry.UpdatedByRole != models.ActorRoleBot {
			continue
		}
		stats.TotalBotTransitions++
		stats.TransitionsByStatus[entry.NewStatus]++
	}
	stats.RecentJobs = s.recentJobs(recent)
	return stats, nil
}

func (s *Store) AdminStats(context.Context) (*models.AdminStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.AdminStats{
		TotalUsers: int64(len(s.users)),
		TotalRoles: int64(len(s.roles)),
		BotRuns:    int64(len(s.jobs)),
	}
	for _, app := range s.applications {
		if s.withRole(app).IsTechnical {
			stats.TechnicalApplications++
		} else {
			stats.NonTechnicalApplications++
		}
	}
	stats.TotalApplications = stats.TechnicalApplications + stats.NonTechnicalApplications
	return stats, nil
}

// Snapshot returns every application, for assertions in tests.
func (s *Store) Snapshot() []models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Application, 0, len(s.applications))
	for _, app := range s.applications {
		out = append(out, *copyApplication(s.withRole(app)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllLogs returns every activity log row in insertion order.
func (s *Store) AllLogs() []models.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityLog(nil), s.logs...)
}

// Put inserts an application in an arbitrary state without an audit row.
// Role and applicant must already exist. Used to seed fixtures.
func (s *Store) Put(app models.Application) models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAppID++
	app.ID = s.nextAppID
	if app.Version == 0 {
		app.Version = 1
	}
	s.applications[app.ID] = *copyApplication(app)
	return *copyApplication(s.withRole(app))
}
