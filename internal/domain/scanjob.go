package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScanJobStatus is the state of a scan job's lifecycle.
type ScanJobStatus string

const (
	ScanPending   ScanJobStatus = "pending"
	ScanRunning   ScanJobStatus = "running"
	ScanCompleted ScanJobStatus = "completed"
	ScanFailed    ScanJobStatus = "failed"
	ScanCancelled ScanJobStatus = "cancelled"
)

const maxStateCodeLength = 8

// ScanJob tracks one state/province scan attempt through the fixed
// Pending -> Running -> {Completed | Failed | Cancelled} lifecycle.
// StartedAt is set exactly once, on the Running transition; CompletedAt
// and FailureReason are set exactly once, on a terminal transition. No
// transition out of a terminal state is permitted.
type ScanJob struct {
	ID              string
	StateOrProvince string
	Cohorts         []TenantInstitutionScope
	Status          ScanJobStatus
	StartedAt       *time.Time
	CompletedAt     *time.Time
	FailureReason   string
	CreatedAt       time.Time
}

// NewScanJob validates and constructs a job in the Pending state.
func NewScanJob(stateOrProvince string, cohorts []TenantInstitutionScope) (*ScanJob, error) {
	stateOrProvince = strings.TrimSpace(stateOrProvince)
	if stateOrProvince == "" {
		return nil, Validationf("state or province is required")
	}
	if len(stateOrProvince) > maxStateCodeLength {
		return nil, Validationf("state code %q is too long", stateOrProvince)
	}
	return &ScanJob{
		ID:              uuid.NewString(),
		StateOrProvince: strings.ToUpper(stateOrProvince),
		Cohorts:         cohorts,
		Status:          ScanPending,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// IsTerminal reports whether the job has reached one of the three outcomes.
func (j *ScanJob) IsTerminal() bool {
	switch j.Status {
	case ScanCompleted, ScanFailed, ScanCancelled:
		return true
	}
	return false
}

// Start transitions Pending -> Running and stamps StartedAt.
func (j *ScanJob) Start(now time.Time) error {
	if j.Status != ScanPending {
		return Validationf("cannot start scan job in status %q", j.Status)
	}
	at := now.UTC()
	j.Status = ScanRunning
	j.StartedAt = &at
	return nil
}

// Complete transitions Running -> Completed.
func (j *ScanJob) Complete(now time.Time) error {
	if j.Status != ScanRunning {
		return Validationf("cannot complete scan job in status %q", j.Status)
	}
	at := now.UTC()
	j.Status = ScanCompleted
	j.CompletedAt = &at
	return nil
}

// Fail settles the job as Failed with the given reason. A Pending job may
// fail directly (e.g. the orchestrator could not even begin the scan).
func (j *ScanJob) Fail(now time.Time, reason string) error {
	if j.IsTerminal() {
		return Validationf("cannot fail scan job in terminal status %q", j.Status)
	}
	at := now.UTC()
	j.Status = ScanFailed
	j.CompletedAt = &at
	j.FailureReason = reason
	return nil
}

// Cancel settles the job as Cancelled with the given reason.
func (j *ScanJob) Cancel(now time.Time, reason string) error {
	if j.IsTerminal() {
		return Validationf("cannot cancel scan job in terminal status %q", j.Status)
	}
	at := now.UTC()
	j.Status = ScanCancelled
	j.CompletedAt = &at
	j.FailureReason = reason
	return nil
}
