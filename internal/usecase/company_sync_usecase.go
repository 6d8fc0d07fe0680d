package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"crm-sync/internal/config"
	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/metrics"
	"crm-sync/internal/infrastructure/oauth2"
	"crm-sync/internal/infrastructure/teamleader"
)

// ErrSyncInProgress is returned when a sync run is already active
var ErrSyncInProgress = errors.New("sync already in progress")

// Error classes recorded on failed summaries
const (
	errorClassNotAuthorized = "not_authorized"
	errorClassConnection    = "connection_test_failed"
	errorClassListing       = "listing_failed"
	errorClassStore         = "store_failed"
	errorClassCanceled      = "canceled"
	errorClassRoles         = "role_recalculation_failed"
	errorClassPanic         = "panic"
	errorClassBusy          = "sync_in_progress"
)

// RoleRecalculator recomputes user roles on the business platform after a company sync
type RoleRecalculator interface {
	Recalculate(ctx context.Context) error
}

// SyncReporter publishes finished run summaries
type SyncReporter interface {
	Report(ctx context.Context, summary *entity.SyncRunSummary) error
}

type CompanySyncUsecase interface {
	// SyncAllCompanies pages through all remote companies and upserts them locally
	SyncAllCompanies(ctx context.Context) *entity.SyncRunSummary

	// RefreshCustomFields re-reads custom fields for every locally stored company
	RefreshCustomFields(ctx context.Context) *entity.SyncRunSummary

	// StartSyncAllCompanies runs SyncAllCompanies in the background. The channel
	// receives the summary once and is then closed.
	StartSyncAllCompanies() (<-chan *entity.SyncRunSummary, error)

	StartRefreshCustomFields() (<-chan *entity.SyncRunSummary, error)

	// LastSyncStatus returns the summary of the most recent run, or nil
	LastSyncStatus() *entity.SyncRunSummary
}

type tokenChecker interface {
	HasValidToken(ctx context.Context) bool
}

type runFunc func(ctx context.Context, summary *entity.SyncRunSummary)

type companySyncUsecase struct {
	config    config.SyncConfig
	tokens    tokenChecker
	client    teamleader.Client
	companies repository.CompanyRepository
	status    repository.SyncStatusStore
	guard     SyncGuard
	roles     RoleRecalculator
	reporter  SyncReporter
	limiter   *rate.Limiter
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewCompanySyncUsecase(
	cfg *config.Config,
	tokens oauth2.TokenManager,
	client teamleader.Client,
	companies repository.CompanyRepository,
	status repository.SyncStatusStore,
	guard SyncGuard,
	roles RoleRecalculator,
	reporter SyncReporter,
	logger *zap.Logger,
) CompanySyncUsecase {
	return newCompanySyncUsecase(cfg.Sync, tokens, client, companies, status, guard, roles, reporter, clockwork.NewRealClock(), logger)
}

func newCompanySyncUsecase(
	cfg config.SyncConfig,
	tokens tokenChecker,
	client teamleader.Client,
	companies repository.CompanyRepository,
	status repository.SyncStatusStore,
	guard SyncGuard,
	roles RoleRecalculator,
	reporter SyncReporter,
	clock clockwork.Clock,
	logger *zap.Logger,
) *companySyncUsecase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &companySyncUsecase{
		config:    cfg,
		tokens:    tokens,
		client:    client,
		companies: companies,
		status:    status,
		guard:     guard,
		roles:     roles,
		reporter:  reporter,
		limiter:   newDetailLimiter(cfg.DetailRatePerSecond, cfg.DetailBurst),
		clock:     clock,
		logger:    logger,
	}
}

// newDetailLimiter returns an unlimited limiter for a rate of zero or less
func newDetailLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (u *companySyncUsecase) SyncAllCompanies(ctx context.Context) *entity.SyncRunSummary {
	return u.runGuarded(ctx, entity.SyncKindCompanies, u.syncAllCompanies)
}

func (u *companySyncUsecase) RefreshCustomFields(ctx context.Context) *entity.SyncRunSummary {
	return u.runGuarded(ctx, entity.SyncKindCustomFields, u.refreshCustomFields)
}

func (u *companySyncUsecase) StartSyncAllCompanies() (<-chan *entity.SyncRunSummary, error) {
	return u.start(entity.SyncKindCompanies, u.syncAllCompanies)
}

func (u *companySyncUsecase) StartRefreshCustomFields() (<-chan *entity.SyncRunSummary, error) {
	return u.start(entity.SyncKindCustomFields, u.refreshCustomFields)
}

func (u *companySyncUsecase) LastSyncStatus() *entity.SyncRunSummary {
	return u.status.Last()
}

func (u *companySyncUsecase) runGuarded(ctx context.Context, kind entity.SyncKind, fn runFunc) *entity.SyncRunSummary {
	release, ok := u.guard.TryAcquire(ctx)
	if !ok {
		u.logger.Warn("Sync already in progress, skipping run", zap.String("kind", string(kind)))
		now := u.clock.Now()
		return &entity.SyncRunSummary{
			Kind:        kind,
			StartedAt:   now,
			CompletedAt: now,
			Message:     ErrSyncInProgress.Error(),
			ErrorClass:  errorClassBusy,
		}
	}
	defer release()

	return u.run(ctx, kind, fn)
}

// start runs fn detached from any request context
func (u *companySyncUsecase) start(kind entity.SyncKind, fn runFunc) (<-chan *entity.SyncRunSummary, error) {
	ctx := context.Background()

	release, ok := u.guard.TryAcquire(ctx)
	if !ok {
		return nil, ErrSyncInProgress
	}

	done := make(chan *entity.SyncRunSummary, 1)
	go func() {
		defer close(done)
		defer release()
		done <- u.run(ctx, kind, fn)
	}()

	u.logger.Info("Sync run started in background", zap.String("kind", string(kind)))
	return done, nil
}

// run never panics, the summary always comes back
func (u *companySyncUsecase) run(ctx context.Context, kind entity.SyncKind, fn runFunc) *entity.SyncRunSummary {
	summary := &entity.SyncRunSummary{
		Kind:      kind,
		StartedAt: u.clock.Now(),
	}

	u.logger.Info("Sync run starting", zap.String("kind", string(kind)))

	func() {
		defer func() {
			if r := recover(); r != nil {
				u.logger.Error("Recovered panic in sync run",
					zap.String("kind", string(kind)),
					zap.Any("panic", r),
				)
				summary.Success = false
				summary.Message = fmt.Sprintf("unexpected failure: %v", r)
				summary.ErrorClass = errorClassPanic
			}
		}()
		fn(ctx, summary)
	}()

	summary.CompletedAt = u.clock.Now()
	u.finish(ctx, summary)

	return summary
}

func (u *companySyncUsecase) finish(ctx context.Context, summary *entity.SyncRunSummary) {
	u.status.Put(summary)

	kind := string(summary.Kind)
	metrics.SyncRunsTotal.WithLabelValues(kind, summary.Status()).Inc()
	metrics.SyncRunDuration.WithLabelValues(kind).Observe(summary.CompletedAt.Sub(summary.StartedAt).Seconds())
	metrics.SyncEntitiesTotal.WithLabelValues(kind, "created").Add(float64(summary.Created))
	metrics.SyncEntitiesTotal.WithLabelValues(kind, "updated").Add(float64(summary.Updated))
	metrics.SyncEntitiesTotal.WithLabelValues(kind, "error").Add(float64(summary.Errors))

	if u.reporter != nil {
		if err := u.reporter.Report(context.WithoutCancel(ctx), summary); err != nil {
			u.logger.Warn("Failed to report sync summary",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}

	u.logger.Info("Sync run completed",
		zap.String("kind", kind),
		zap.String("status", summary.Status()),
		zap.Int("total", summary.Total),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", summary.Errors),
		zap.Int("pages", summary.Pages),
		zap.Duration("duration", summary.CompletedAt.Sub(summary.StartedAt)),
		zap.String("message", summary.Message),
	)
}

func (u *companySyncUsecase) syncAllCompanies(ctx context.Context, summary *entity.SyncRunSummary) {
	if !u.tokens.HasValidToken(ctx) {
		u.logger.Warn("Not authorized, skipping company sync")
		summary.Message = "not authorized"
		summary.ErrorClass = errorClassNotAuthorized
		return
	}

	if u.config.TestConnection {
		if resp := u.client.TestConnection(ctx); resp.Failed() {
			u.logger.Error("Connection test failed, aborting company sync", zap.Error(resp.Error))
			summary.Message = "connection test failed: " + resp.Error.Message
			summary.ErrorClass = errorClassConnection
			return
		}
	}

	pageSize := u.config.PageSize
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			u.cancel(summary, err)
			return
		}

		resp := u.client.ListCompanies(ctx, page, pageSize)
		if resp.Failed() {
			u.logger.Error("Failed to list companies page",
				zap.Int("page", page),
				zap.Error(resp.Error),
			)
			summary.Errors++
			summary.Message = fmt.Sprintf("failed to list page %d: %s", page, resp.Error.Message)
			summary.ErrorClass = errorClassListing
			break
		}

		data := resp.Body.Get("data")
		if !data.IsArray() {
			u.logger.Error("Companies page without data array", zap.Int("page", page))
			summary.Errors++
			summary.Message = fmt.Sprintf("page %d has no data array", page)
			summary.ErrorClass = errorClassListing
			break
		}

		summary.Pages++
		records := data.Array()

		u.logger.Info("Processing companies page",
			zap.Int("page", page),
			zap.Int("records", len(records)),
		)

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				u.cancel(summary, err)
				return
			}
			u.syncCompany(ctx, summary, record)
		}

		if len(records) < pageSize {
			break
		}
	}

	summary.Success = summary.Errors == 0

	if summary.Success && u.config.RecalculateRolesHook && u.roles != nil {
		if err := u.roles.Recalculate(ctx); err != nil {
			u.logger.Error("Role recalculation failed after company sync", zap.Error(err))
			summary.Success = false
			summary.Message = "role recalculation failed: " + err.Error()
			summary.ErrorClass = errorClassRoles
		}
	}
}

// syncCompany fetches and upserts one listed company. Failures are counted, never returned.
func (u *companySyncUsecase) syncCompany(ctx context.Context, summary *entity.SyncRunSummary, record gjson.Result) {
	externalID := record.Get("id").String()
	if externalID == "" {
		u.logger.Warn("Listed company without id, skipping")
		summary.Errors++
		return
	}

	if err := u.limiter.Wait(ctx); err != nil {
		summary.Errors++
		return
	}

	resp := u.client.GetCompany(ctx, externalID)
	if resp.Failed() {
		u.logger.Warn("Failed to fetch company details",
			zap.String("external_id", externalID),
			zap.Error(resp.Error),
		)
		summary.Errors++
		return
	}

	data := resp.Body.Get("data")
	if !data.IsObject() {
		u.logger.Warn("Company details without data object", zap.String("external_id", externalID))
		summary.Errors++
		return
	}

	existing, err := u.companies.FindByExternalID(ctx, externalID)
	if err != nil {
		u.logger.Error("Failed to load company", zap.String("external_id", externalID), zap.Error(err))
		summary.Errors++
		return
	}

	company := existing
	if company == nil {
		company = &entity.Company{ExternalID: externalID}
	}
	MapCompany(data, company)
	syncedAt := u.clock.Now()
	company.LastSyncedAt = &syncedAt

	if _, err := u.companies.Save(ctx, company); err != nil {
		u.logger.Error("Failed to save company", zap.String("external_id", externalID), zap.Error(err))
		summary.Errors++
		return
	}

	if existing == nil {
		summary.Created++
	} else {
		summary.Updated++
	}
	summary.Total++
}

func (u *companySyncUsecase) refreshCustomFields(ctx context.Context, summary *entity.SyncRunSummary) {
	if !u.tokens.HasValidToken(ctx) {
		u.logger.Warn("Not authorized, skipping custom field refresh")
		summary.Message = "not authorized"
		summary.ErrorClass = errorClassNotAuthorized
		return
	}

	companies, err := u.companies.FindAll(ctx)
	if err != nil {
		u.logger.Error("Failed to load companies", zap.Error(err))
		summary.Errors++
		summary.Message = "failed to load companies: " + err.Error()
		summary.ErrorClass = errorClassStore
		return
	}

	u.logger.Info("Refreshing custom fields", zap.Int("companies", len(companies)))

	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			u.cancel(summary, err)
			return
		}

		if err := u.limiter.Wait(ctx); err != nil {
			summary.Errors++
			continue
		}

		resp := u.client.GetCompany(ctx, company.ExternalID)
		if resp.Failed() {
			u.logger.Warn("Failed to fetch company details",
				zap.String("external_id", company.ExternalID),
				zap.Error(resp.Error),
			)
			summary.Errors++
			continue
		}

		data := resp.Body.Get("data")
		if !data.IsObject() {
			u.logger.Warn("Company details without data object", zap.String("external_id", company.ExternalID))
			summary.Errors++
			continue
		}

		// absent custom_fields keeps the stored values, an explicit empty list clears them
		if fields := data.Get("custom_fields"); fields.Exists() {
			company.CustomFields = ExtractCustomFields(fields)
		}
		syncedAt := u.clock.Now()
		company.LastSyncedAt = &syncedAt

		if _, err := u.companies.Save(ctx, company); err != nil {
			u.logger.Error("Failed to save company custom fields",
				zap.String("external_id", company.ExternalID),
				zap.Error(err),
			)
			summary.Errors++
			continue
		}

		summary.Updated++
		summary.Total++
	}

	summary.Success = summary.Errors == 0
}

func (u *companySyncUsecase) cancel(summary *entity.SyncRunSummary, err error) {
	u.logger.Warn("Sync run canceled", zap.String("kind", string(summary.Kind)), zap.Error(err))
	summary.Success = false
	summary.Message = "canceled: " + err.Error()
	summary.ErrorClass = errorClassCanceled
}
