// Package service is the single entry point the HTTP API, the Zeebe workers
// and botctl use to drive the pipeline.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/pipeline/bot"
	"botic-pipeline/internal/pipeline/lock"
	"botic-pipeline/internal/pipeline/policy"
	"botic-pipeline/internal/pipeline/transition"
	"botic-pipeline/internal/store"
)

const (
	defaultRecentJobs = 10
	maxRecentJobs     = 100
	statsRecentJobs   = 5

	defaultPageSize = 50
	maxPageSize     = 500

	minRoleNameLength = 2
	maxRoleNameLength = 200
)

type Config struct {
	// RestrictTechnicalManual blocks non-bot actors from moving
	// technical-role applications.
	RestrictTechnicalManual bool
}

type Service struct {
	store    store.Store
	locks    *lock.Coordinator
	executor *transition.Executor
	runner   *bot.Runner
	cache    *JobCache
	cfg      Config
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithJobCache(cache *JobCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	st store.Store,
	locks *lock.Coordinator,
	executor *transition.Executor,
	runner *bot.Runner,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:    st,
		locks:    locks,
		executor: executor,
		runner:   runner,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "pipeline-service"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransitionCommand is an interactive status change request.
type TransitionCommand struct {
	ApplicationID int64
	NewStatus     string
	Actor         string
	ActorRole     string
	Comment       string
}

// SubmitTransition validates and applies an interactive status change while
// holding the application's lock. LOCK_CONFLICT and CONCURRENCY_CONFLICT come
// back unchanged; both are retryable.
func (s *Service) SubmitTransition(ctx context.Context, cmd TransitionCommand) (*transition.Result, error) {
	next, err := policy.ParseStatus(cmd.NewStatus)
	if err != nil {
		return nil, err
	}

	if s.cfg.RestrictTechnicalManual && cmd.ActorRole != models.ActorRoleBot {
		app, err := s.store.GetApplication(ctx, cmd.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app.IsTechnical {
			return nil, apperrors.NewValidationError(
				"cannot manually update technical role applications", app.RoleName)
		}
	}

	var result *transition.Result
	err = s.locks.WithLock(ctx, cmd.ApplicationID, func(ctx context.Context) error {
		res, err := s.executor.Apply(ctx, transition.Request{
			ApplicationID: cmd.ApplicationID,
			NewStatus:     next,
			Actor:         cmd.Actor,
			ActorRole:     cmd.ActorRole,
			Comment:       cmd.Comment,
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) RunBot(ctx context.Context, req bot.RunRequest) (*bot.RunResult, error) {
	return s.runner.Run(ctx, req)
}

// GetJob reads finalized jobs through the cache; running jobs always come
// from the store.
func (s *Service) GetJob(ctx context.Context, id int64) (*models.BotJob, error) {
	if job, ok := s.cache.Get(ctx, id); ok {
		return job, nil
	}

	job, err := s.store.GetBotJob(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, job)
	return job, nil
}

func (s *Service) ListRecentJobs(ctx context.Context, limit int) ([]models.BotJob, error) {
	if limit == 0 {
		limit = defaultRecentJobs
	}
	if limit < 1 || limit > maxRecentJobs {
		return nil, apperrors.NewValidationError("Invalid limit",
			fmt.Sprintf("limit must be between 1 and %d", maxRecentJobs))
	}
	return s.store.ListBotJobs(ctx, limit)
}

func (s *Service) BotStats(ctx context.Context) (*models.BotStats, error) {
	return s.store.BotStats(ctx, statsRecentJobs)
}

// Viewer is the identity a read is performed for.
type Viewer struct {
	Email string
	Role  string
}

// GetApplication returns one application with its role and applicant.
// Applicants see only their own; anyone else's reads as not found.
func (s *Service) GetApplication(ctx context.Context, id int64, viewer Viewer) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	applicant, err := s.store.GetUser(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == models.ActorRoleApplicant && !strings.EqualFold(applicant.Email, viewer.Email) {
		return nil, apperrors.NewNotFoundError("Application", id)
	}
	app.ApplicantName = applicant.Name
	app.ApplicantEmail = applicant.Email
	return app, nil
}

// ListMyApplications returns every application of the applicant with the
// given email, newest first.
func (s *Service) ListMyApplications(ctx context.Context, email string) ([]models.Application, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	apps, _, err := s.store.ListApplications(ctx, store.ApplicationFilter{ApplicantID: user.ID})
	return apps, err
}

// PageRequest is a skip/take window. Take 0 selects the default page size.
type PageRequest struct {
	Skip int
	Take int
}

func (p PageRequest) normalize() (PageRequest, error) {
	if p.Take == 0 {
		p.Take = defaultPageSize
	}
	if p.Skip < 0 || p.Take < 1 || p.Take > maxPageSize {
		return p, apperrors.NewValidationError("Invalid pagination parameters",
			fmt.Sprintf("skip must be >= 0 and take between 1 and %d", maxPageSize))
	}
	return p, nil
}

// ListApplications pages every application, optionally narrowed to
// technical or non-technical roles.
func (s *Service) ListApplications(ctx context.Context, technical *bool, page PageRequest) (*models.Page[models.Application], error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	apps, total, err := s.store.ListApplications(ctx, store.ApplicationFilter{
		Technical: technical,
		Skip:      page.Skip,
		Take:      page.Take,
	})
	if err != nil {
		return nil, err
	}
	return &models.Page[models.Application]{
		TotalCount: total,
		Count:      len(apps),
		Skip:       page.Skip,
		Take:       page.Take,
		Data:       apps,
	}, nil
}

func (s *Service) ListUsers(ctx context.Context, page PageRequest) (*models.Page[models.User], error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	users, total, err := s.store.ListUsers(ctx, page.Skip, page.Take)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.User]{
		TotalCount: total,
		Count:      len(users),
		Skip:       page.Skip,
		Take:       page.Take,
		Data:       users,
	}, nil
}

// Dashboard returns the metrics for the viewer's role.
func (s *Service) Dashboard(ctx context.Context, viewer Viewer) (*models.Dashboard, error) {
	dash := &models.Dashboard{Role: viewer.Role}
	switch viewer.Role {
	case models.ActorRoleApplicant:
		user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(viewer.Email))
		if err != nil {
			return nil, err
		}
		counts, err := s.store.CountApplicationsByStatus(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		dash.Applicant = models.NewApplicantStats(counts)
	case models.ActorRoleAdmin:
		stats, err := s.store.AdminStats(ctx)
		if err != nil {
			return nil, err
		}
		dash.Admin = stats
	case models.ActorRoleBot:
		stats, err := s.BotStats(ctx)
		if err != nil {
			return nil, err
		}
		dash.Bot = stats
	default:
		return nil, apperrors.NewValidationError("Unknown role", viewer.Role)
	}
	return dash, nil
}

// ListActivityLog returns the application's history, newest first.
func (s *Service) ListActivityLog(ctx context.Context, applicationID int64) ([]models.ActivityLog, error) {
	if _, err := s.store.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return s.store.ListActivityLogs(ctx, applicationID)
}

// CreateApplication opens an application in Applied and writes its creation
// log row in the same transaction.
func (s *Service) CreateApplication(ctx context.Context, applicantID int64, roleName string) (*models.Application, error) {
	role, err := s.store.GetRoleByName(ctx, strings.TrimSpace(roleName))
	if err != nil {
		return nil, err
	}
	applicant, err := s.store.GetUser(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	app := &models.Application{
		ApplicantID:   applicant.ID,
		RoleID:        role.ID,
		CurrentStatus: models.StatusApplied,
		CreatedAt:     now,
		RoleName:      role.Name,
		IsTechnical:   role.IsTechnical,
	}
	comment := "Application created"
	creation := models.ActivityLog{
		NewStatus:     models.StatusApplied,
		UpdatedBy:     applicant.Email,
		UpdatedByRole: models.ActorRoleApplicant,
		Comment:       &comment,
		CreatedAt:     now,
	}
	if err := s.store.CreateApplication(ctx, app, creation); err != nil {
		return nil, err
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"role":          role.Name,
		"technical":     role.IsTechnical,
	})
	return app, nil
}

func (s *Service) CreateRole(ctx context.Context, name string, isTechnical bool) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minRoleNameLength || n > maxRoleNameLength {
		return nil, apperrors.NewValidationError("Invalid role name",
			fmt.Sprintf("name must be between %d and %d characters", minRoleNameLength, maxRoleNameLength))
	}

	role := &models.Role{Name: name, IsTechnical: isTechnical}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("Invalid email", email)
	}

	user := &models.User{Name: strings.TrimSpace(name), Email: email}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ReleaseLock force-clears a lock left behind by a crashed writer.
func (s *Service) ReleaseLock(ctx context.Context, applicationID int64, actor string) error {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.locks.Release(ctx, applicationID); err != nil {
		return err
	}

	s.logger.Warn("application lock released manually", map[string]interface{}{
		"applicationId": applicationID,
		"wasLocked":     app.Locked(),
		"actor":         actor,
	})
	return nil
}

// Ready checks the store and, when enabled, the job cache.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("job cache: %w", err)
	}
	return nil
}
