package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/user/listing-sentinel/internal/domain"
	"github.com/user/listing-sentinel/internal/domain/mocks"
)

// stubMatchFinder is a controllable MatchFinder for orchestrator tests.
type stubMatchFinder struct {
	matches      []*domain.ListingMatch
	findErr      error
	publishErr   error
	panicOnFind  bool
	findCalls    int
	publishCalls int
}

func (s *stubMatchFinder) FindMatches(ctx context.Context, stateOrProvince string, scopes []domain.TenantInstitutionScope) ([]*domain.ListingMatch, error) {
	s.findCalls++
	if s.panicOnFind {
		panic("listings decoder blew up")
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.matches, nil
}

func (s *stubMatchFinder) PublishMatches(ctx context.Context, matches []*domain.ListingMatch) error {
	s.publishCalls++
	return s.publishErr
}

func tenantCtx(tenantID, institutionID string) context.Context {
	return domain.WithTenant(context.Background(), domain.TenantContext{
		TenantID:      tenantID,
		InstitutionID: institutionID,
	})
}

func TestStartScan(t *testing.T) {
	t.Run("Completed Scan Is Persisted", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		finder := &stubMatchFinder{matches: []*domain.ListingMatch{mustMatch(t, "listing-1", 2600, []string{addr.ID})}}
		orch := NewScanOrchestrator(jobs, finder, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		if err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "CA"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(jobs.Jobs) != 1 {
			t.Fatalf("expected one persisted job, got %d", len(jobs.Jobs))
		}
		job := jobs.Jobs[0]
		if job.Status != domain.ScanCompleted {
			t.Errorf("expected completed, got %q", job.Status)
		}
		if job.StartedAt == nil || job.CompletedAt == nil {
			t.Error("lifecycle timestamps must be set")
		}
		want := []domain.ScanJobStatus{domain.ScanRunning, domain.ScanCompleted}
		if len(jobs.Updates) != len(want) || jobs.Updates[0] != want[0] || jobs.Updates[1] != want[1] {
			t.Errorf("expected update trace %v, got %v", want, jobs.Updates)
		}
		if finder.publishCalls != 1 {
			t.Errorf("expected one publish, got %d", finder.publishCalls)
		}
	})

	t.Run("No Matches Skips Publish", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		finder := &stubMatchFinder{}
		orch := NewScanOrchestrator(jobs, finder, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		if err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "CA"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if finder.publishCalls != 0 {
			t.Error("publish must not be invoked for an empty match set")
		}
		if jobs.Jobs[0].Status != domain.ScanCompleted {
			t.Errorf("expected completed, got %q", jobs.Jobs[0].Status)
		}
	})

	t.Run("Engine Failure Marks Job Failed", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		finder := &stubMatchFinder{findErr: errors.New("upstream timeout")}
		orch := NewScanOrchestrator(jobs, finder, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "CA")
		if err == nil {
			t.Fatal("expected the scan to fail")
		}
		job := jobs.Jobs[0]
		if job.Status != domain.ScanFailed {
			t.Errorf("expected failed, got %q", job.Status)
		}
		if job.FailureReason == "" {
			t.Error("failure reason must be recorded")
		}
	})

	t.Run("Publish Failure Marks Job Failed", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		finder := &stubMatchFinder{
			matches:    []*domain.ListingMatch{mustMatch(t, "listing-1", 2600, []string{addr.ID})},
			publishErr: errors.New("stream unavailable"),
		}
		orch := NewScanOrchestrator(jobs, finder, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		if err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "CA"); err == nil {
			t.Fatal("expected the scan to fail")
		}
		if jobs.Jobs[0].Status != domain.ScanFailed {
			t.Errorf("expected failed, got %q", jobs.Jobs[0].Status)
		}
	})

	t.Run("Validation Failure Persists Nothing", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		orch := NewScanOrchestrator(jobs, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "  ")
		if !domain.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if len(jobs.Jobs) != 0 || len(jobs.Updates) != 0 {
			t.Error("an invalid scan request must leave no trace in storage")
		}
	})

	t.Run("Missing Tenant Context", func(t *testing.T) {
		orch := NewScanOrchestrator(&mocks.MockScanJobStore{}, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())
		if err := orch.StartScan(context.Background(), "CA"); !errors.Is(err, domain.ErrTenantContextMissing) {
			t.Fatalf("expected ErrTenantContextMissing, got %v", err)
		}
	})

	t.Run("Panic Is Recovered Into Failed", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		finder := &stubMatchFinder{panicOnFind: true}
		orch := NewScanOrchestrator(jobs, finder, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		err := orch.StartScan(tenantCtx("tenant-a", "inst-1"), "CA")
		if err == nil {
			t.Fatal("expected a recovered panic to surface as an error")
		}
		if jobs.Jobs[0].Status != domain.ScanFailed {
			t.Errorf("a panicking scan must not leave the job running, got %q", jobs.Jobs[0].Status)
		}
	})
}

func TestStopScan(t *testing.T) {
	t.Run("Cancels A Running Job", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		job, _ := domain.NewScanJob("CA", nil)
		_ = job.Start(job.CreatedAt)
		jobs.Jobs = append(jobs.Jobs, job)
		orch := NewScanOrchestrator(jobs, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		if err := orch.StopScan(tenantCtx("tenant-a", "inst-1"), job.ID, "operator request"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != domain.ScanCancelled {
			t.Errorf("expected cancelled, got %q", job.Status)
		}
	})

	t.Run("Unknown Job Is A Failure", func(t *testing.T) {
		orch := NewScanOrchestrator(&mocks.MockScanJobStore{}, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())
		if err := orch.StopScan(tenantCtx("tenant-a", "inst-1"), "no-such-job", "x"); !domain.IsNotFound(err) {
			t.Fatalf("expected not-found, got %v", err)
		}
	})

	t.Run("Terminal Job Cannot Be Cancelled", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		job, _ := domain.NewScanJob("CA", nil)
		_ = job.Start(job.CreatedAt)
		_ = job.Complete(job.CreatedAt)
		jobs.Jobs = append(jobs.Jobs, job)
		orch := NewScanOrchestrator(jobs, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		if err := orch.StopScan(tenantCtx("tenant-a", "inst-1"), job.ID, "too late"); err == nil {
			t.Fatal("expected cancelling a completed job to error")
		}
	})
}

func TestGetScanStatus(t *testing.T) {
	t.Run("No Scans Yet", func(t *testing.T) {
		institutions := &mocks.MockInstitutionStore{Counts: domain.InstitutionCounts{Total: 3, Active: 2}}
		orch := NewScanOrchestrator(&mocks.MockScanJobStore{}, &stubMatchFinder{}, institutions, testLogger(), testMetrics())

		status, err := orch.GetScanStatus(tenantCtx("tenant-a", "inst-1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if status.JobID != "" {
			t.Errorf("expected empty job id, got %q", status.JobID)
		}
		if status.Counts.Total != 3 {
			t.Errorf("expected counts passed through, got %+v", status.Counts)
		}
	})

	t.Run("Latest Job Summarized", func(t *testing.T) {
		jobs := &mocks.MockScanJobStore{}
		job, _ := domain.NewScanJob("CA", nil)
		_ = job.Start(job.CreatedAt)
		_ = job.Complete(job.CreatedAt)
		jobs.Jobs = append(jobs.Jobs, job)
		orch := NewScanOrchestrator(jobs, &stubMatchFinder{}, &mocks.MockInstitutionStore{}, testLogger(), testMetrics())

		status, err := orch.GetScanStatus(tenantCtx("tenant-a", "inst-1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if status.JobID != job.ID || status.Status != domain.ScanCompleted {
			t.Errorf("unexpected status summary: %+v", status)
		}
		if status.CompletedAt == nil {
			t.Error("expected completion timestamp in the summary")
		}
	})
}
