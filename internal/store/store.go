// Package store declares the persistence contract the pipeline runs against.
//
// Implementations must make AcquireLock and ApplyTransition atomic
// conditional single-row writes; nothing else in the pipeline relies on
// multi-row transactions.
package store

import (
	"context"
	"time"

	"botic-pipeline/internal/models"
)

// StatusWrite is one status change plus its audit row. ExpectedVersion is the
// version observed when the change was validated.
type StatusWrite struct {
	ApplicationID   int64
	ExpectedVersion int64
	OldStatus       models.Status
	NewStatus       models.Status
	Automated       bool
	At              time.Time
	Actor           string
	ActorRole       string
	Comment         *string
}

// CandidateFilter selects applications the bot may advance: technical role,
// unlocked, status outside Excluded, and last automated move before Cutoff.
type CandidateFilter struct {
	Cutoff   time.Time
	Excluded []models.Status
	Limit    int
}

// ApplicationFilter narrows ListApplications. Zero ApplicantID and nil
// Technical match everything; Take 0 returns every match after Skip.
type ApplicationFilter struct {
	ApplicantID int64
	Technical   *bool
	Skip        int
	Take        int
}

type ApplicationStore interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	// CreateApplication inserts an Applied application and its creation log.
	CreateApplication(ctx context.Context, app *models.Application, creation models.ActivityLog) error
	// AcquireLock sets the lock token only when none is held.
	AcquireLock(ctx context.Context, id int64, token string) error
	// ReleaseLock clears the token unconditionally.
	ReleaseLock(ctx context.Context, id int64) error
	// ApplyTransition writes status, version and the audit row in one unit,
	// failing with CONCURRENCY_CONFLICT if the version moved.
	ApplyTransition(ctx context.Context, w StatusWrite) (*models.ActivityLog, error)
	FindCandidates(ctx context.Context, f CandidateFilter) ([]models.Application, error)
	// ListActivityLogs returns newest first.
	ListActivityLogs(ctx context.Context, applicationID int64) ([]models.ActivityLog, error)
	// ListApplications returns one page newest first, joined with role and
	// applicant, plus the total number of matches.
	ListApplications(ctx context.Context, f ApplicationFilter) ([]models.Application, int64, error)
	CountApplicationsByStatus(ctx context.Context, applicantID int64) (map[models.Status]int64, error)
}

type RoleStore interface {
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers pages by ascending id.
	ListUsers(ctx context.Context, skip, take int) ([]models.User, int64, error)
}

type BotJobStore interface {
	CreateBotJob(ctx context.Context, job *models.BotJob) error
	// FinalizeBotJob is the single write that moves a Running job to a
	// terminal status.
	FinalizeBotJob(ctx context.Context, id int64, outcome models.BotJobOutcome) error
	GetBotJob(ctx context.Context, id int64) (*models.BotJob, error)
	// ListBotJobs returns newest first.
	ListBotJobs(ctx context.Context, limit int) ([]models.BotJob, error)
}

type DashboardStore interface {
	AdminStats(ctx context.Context) (*models.AdminStats, error)
	BotStats(ctx context.Context, recent int) (*models.BotStats, error)
}

type Store interface {
	ApplicationStore
	RoleStore
	UserStore
	BotJobStore
	DashboardStore

	Ping(ctx context.Context) error
	Close() error
}
