package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/listing-sentinel/internal/adapter/metrics"
	"github.com/user/listing-sentinel/internal/domain"
)

// MatchFinder is the slice of the match engine the orchestrator depends on.
type MatchFinder interface {
	FindMatches(ctx context.Context, stateOrProvince string, scopes []domain.TenantInstitutionScope) ([]*domain.ListingMatch, error)
	PublishMatches(ctx context.Context, matches []*domain.ListingMatch) error
}

// ScanStatus summarizes the most recent scan job together with aggregate
// institution and address counts for the ambient tenant scope.
type ScanStatus struct {
	JobID       string
	Status      domain.ScanJobStatus
	CompletedAt *time.Time
	Counts      domain.InstitutionCounts
}

// ScanOrchestrator owns the scan job state machine for exactly one
// state/province scan, under whatever tenant context is ambient when called.
// It is the last line of defense against crashing the scheduler tick: any
// panic during a scan is recovered into a Failed transition, so a job is
// never left stuck in Running.
type ScanOrchestrator struct {
	jobs         domain.ScanJobStore
	engine       MatchFinder
	institutions domain.InstitutionStore
	logger       *slog.Logger
	metrics      *metrics.ScanMetrics
}

// NewScanOrchestrator creates a new ScanOrchestrator.
func NewScanOrchestrator(
	jobs domain.ScanJobStore,
	engine MatchFinder,
	institutions domain.InstitutionStore,
	logger *slog.Logger,
	m *metrics.ScanMetrics,
) *ScanOrchestrator {
	return &ScanOrchestrator{
		jobs:         jobs,
		engine:       engine,
		institutions: institutions,
		logger:       logger.With("component", "scan_orchestrator"),
		metrics:      m,
	}
}

// StartScan drives one scan job through its lifecycle for the ambient scope.
func (o *ScanOrchestrator) StartScan(ctx context.Context, stateOrProvince string) (err error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	scope := domain.TenantInstitutionScope{TenantID: tc.TenantID, InstitutionID: tc.InstitutionID}

	job, err := domain.NewScanJob(stateOrProvince, []domain.TenantInstitutionScope{scope})
	if err != nil {
		// Validation failure: nothing was persisted.
		return err
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("persisting scan job: %w", err)
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic during scan: %v", r)
			o.logger.Error("recovered panic during scan",
				"job_id", job.ID, "state", job.StateOrProvince, "panic", r)
			o.settle(ctx, job, reason)
			err = fmt.Errorf("scan %s failed: %s", job.ID, reason)
		}
		o.metrics.ScanDuration.Observe(time.Since(started).Seconds())
		o.metrics.ScansTotal.WithLabelValues(string(job.Status)).Inc()
	}()

	if err := job.Start(time.Now()); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persisting running scan job: %w", err)
	}

	matches, err := o.engine.FindMatches(ctx, job.StateOrProvince, job.Cohorts)
	if err != nil {
		o.settle(ctx, job, err.Error())
		return fmt.Errorf("scan %s failed: %w", job.ID, err)
	}

	if len(matches) > 0 {
		if err := o.engine.PublishMatches(ctx, matches); err != nil {
			o.settle(ctx, job, err.Error())
			return fmt.Errorf("scan %s failed: %w", job.ID, err)
		}
	}

	if err := job.Complete(time.Now()); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persisting completed scan job: %w", err)
	}

	o.logger.Info("scan completed",
		"job_id", job.ID,
		"state", job.StateOrProvince,
		"tenant_id", tc.TenantID,
		"matches", len(matches),
	)
	return nil
}

// settle forces the job into Failed and persists it, logging rather than
// returning persistence errors: the original failure is the one reported.
func (o *ScanOrchestrator) settle(ctx context.Context, job *domain.ScanJob, reason string) {
	if err := job.Fail(time.Now(), reason); err != nil {
		o.logger.Error("could not transition scan job to failed", "job_id", job.ID, "error", err)
		return
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("could not persist failed scan job", "job_id", job.ID, "error", err)
	}
}

// StopScan cancels an in-flight scan job with the given reason. An unknown
// job id is a reported failure, not a no-op.
func (o *ScanOrchestrator) StopScan(ctx context.Context, jobID, reason string) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading scan job %s: %w", jobID, err)
	}
	if err := job.Cancel(time.Now(), reason); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persisting cancelled scan job: %w", err)
	}
	o.logger.Info("scan cancelled", "job_id", jobID, "reason", reason)
	return nil
}

// GetScanStatus returns the most recent job summary and aggregate counts for
// the ambient tenant scope.
func (o *ScanOrchestrator) GetScanStatus(ctx context.Context) (*ScanStatus, error) {
	counts, err := o.institutions.GetCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating institution counts: %w", err)
	}

	status := &ScanStatus{Counts: counts}
	latest, err := o.jobs.GetLatest(ctx)
	switch {
	case err == nil:
		status.JobID = latest.ID
		status.Status = latest.Status
		status.CompletedAt = latest.CompletedAt
	case domain.IsNotFound(err):
		// No scans yet for this scope.
	default:
		return nil, fmt.Errorf("loading latest scan job: %w", err)
	}
	return status, nil
}
