package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/listing-sentinel/internal/adapter/metrics"
	"github.com/user/listing-sentinel/internal/domain"
)

const (
	defaultMaxConcurrency = 4
	institutionPageSize   = 100
)

// Orchestrator is the slice of the scan orchestrator the scheduler depends on.
type Orchestrator interface {
	StartScan(ctx context.Context, stateOrProvince string) error
}

// cohort is one (tenant, state) unit of scan work, together with the
// institution that contributed the state.
type cohort struct {
	TenantID        string
	InstitutionID   string
	StateOrProvince string
}

// ScanScheduler is the cron-gated entry point of the scan pipeline. On each
// tick it decides whether a scan is due, discovers the full set of
// (tenant, state) cohorts under a platform-admin context, and dispatches the
// orchestrator once per cohort under that cohort's own non-admin context.
//
// The cron due-check plus the lastRun advance is the only guard against
// overlapping ticks; the caller must not invoke Tick concurrently from the
// same process.
type ScanScheduler struct {
	schedules      domain.ScheduleStore
	institutions   domain.InstitutionStore
	addresses      domain.AddressStore
	orchestrator   Orchestrator
	audit          domain.AuditSink
	logger         *slog.Logger
	metrics        *metrics.ScanMetrics
	maxConcurrency int
}

// NewScanScheduler creates a new ScanScheduler. maxConcurrency bounds the
// number of cohorts scanned in parallel; values below 1 use the default.
func NewScanScheduler(
	schedules domain.ScheduleStore,
	institutions domain.InstitutionStore,
	addresses domain.AddressStore,
	orchestrator Orchestrator,
	audit domain.AuditSink,
	logger *slog.Logger,
	m *metrics.ScanMetrics,
	maxConcurrency int,
) *ScanScheduler {
	if maxConcurrency < 1 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &ScanScheduler{
		schedules:      schedules,
		institutions:   institutions,
		addresses:      addresses,
		orchestrator:   orchestrator,
		audit:          audit,
		logger:         logger.With("component", "scan_scheduler"),
		metrics:        m,
		maxConcurrency: maxConcurrency,
	}
}

// Tick runs one scheduling pass at the given timestamp. The not-due path is
// cheap and side-effect-free: no storage writes, no audit events, no
// orchestrator calls. When due, every cohort is dispatched regardless of
// individual cohort failures, and the schedule advances afterwards.
func (s *ScanScheduler) Tick(ctx context.Context, now time.Time) error {
	// Schedule bookkeeping and cohort discovery run as platform admin;
	// cohort dispatch never does.
	adminCtx := domain.WithTenant(ctx, domain.TenantContext{IsPlatformAdmin: true})

	schedule, err := s.schedules.Get(adminCtx)
	if err != nil {
		s.metrics.TicksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("loading scan schedule: %w", err)
	}
	if !schedule.IsDue(now) {
		s.metrics.TicksTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	cohorts, err := s.discoverCohorts(adminCtx)
	if err != nil {
		s.metrics.TicksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("discovering scan cohorts: %w", err)
	}

	s.logger.Info("scan tick fired",
		"cohorts", len(cohorts),
		"expression", schedule.Expression,
		"time_zone", schedule.TimeZoneID,
	)

	s.dispatchCohorts(ctx, cohorts)

	// The schedule advances even when cohorts failed (or none existed):
	// per-cohort failures are reported via audit and the job record, never
	// escalated to the tick's own result.
	schedule.MarkRun(now)
	if err := s.schedules.Upsert(adminCtx, schedule); err != nil {
		s.metrics.TicksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("advancing scan schedule: %w", err)
	}
	s.audit.TrackEvent(ctx, "scan_schedule_advanced", map[string]string{
		"last_run": now.UTC().Format(time.RFC3339),
		"cohorts":  fmt.Sprintf("%d", len(cohorts)),
	})
	s.metrics.TicksTotal.WithLabelValues("fired").Inc()
	return nil
}

// discoverCohorts pages through all institutions under a platform-admin
// context and collects one (tenant, state) cohort per distinct pair among
// active addresses. Multiple institutions of the same tenant contributing
// the same state collapse to a single cohort; the first contributor's
// institution id scopes the dispatch context.
func (s *ScanScheduler) discoverCohorts(adminCtx context.Context) ([]cohort, error) {
	seen := make(map[string]bool)
	var cohorts []cohort

	for page := 1; ; page++ {
		institutions, total, err := s.institutions.List(adminCtx, page, institutionPageSize)
		if err != nil {
			return nil, err
		}
		for _, inst := range institutions {
			states, err := s.addresses.DistinctActiveStates(adminCtx, inst.ID)
			if err != nil {
				return nil, err
			}
			for _, state := range states {
				key := strings.ToLower(inst.TenantID) + "|" + strings.ToUpper(state)
				if seen[key] {
					continue
				}
				seen[key] = true
				cohorts = append(cohorts, cohort{
					TenantID:        inst.TenantID,
					InstitutionID:   inst.ID,
					StateOrProvince: strings.ToUpper(state),
				})
			}
		}
		if page*institutionPageSize >= total || len(institutions) == 0 {
			break
		}
	}
	return cohorts, nil
}

// dispatchCohorts runs the orchestrator once per cohort with bounded
// parallelism. Each dispatch derives its own non-admin tenant context from
// the base ctx, so interleaved cohorts for different tenants can never
// observe each other's scope.
func (s *ScanScheduler) dispatchCohorts(ctx context.Context, cohorts []cohort) {
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, c := range cohorts {
		wg.Add(1)
		sem <- struct{}{}

		go func(c cohort) {
			defer wg.Done()
			defer func() { <-sem }()

			cohortCtx := domain.WithTenant(ctx, domain.TenantContext{
				TenantID:      c.TenantID,
				InstitutionID: c.InstitutionID,
			})

			props := map[string]string{
				"tenant_id":      c.TenantID,
				"institution_id": c.InstitutionID,
				"state":          c.StateOrProvince,
			}

			if err := s.orchestrator.StartScan(cohortCtx, c.StateOrProvince); err != nil {
				s.logger.Error("cohort scan failed",
					"tenant_id", c.TenantID,
					"state", c.StateOrProvince,
					"error", err,
				)
				props["error"] = err.Error()
				s.audit.TrackEvent(cohortCtx, "scan_cohort_failed", props)
				s.metrics.CohortsDispatched.WithLabelValues("error").Inc()
				return
			}
			s.audit.TrackEvent(cohortCtx, "scan_cohort_dispatched", props)
			s.metrics.CohortsDispatched.WithLabelValues("ok").Inc()
		}(c)
	}

	wg.Wait()
}
