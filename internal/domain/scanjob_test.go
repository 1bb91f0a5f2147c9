package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewScanJob(t *testing.T) {
	t.Run("Valid State", func(t *testing.T) {
		job, err := NewScanJob("ca", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != ScanPending {
			t.Errorf("expected initial status pending, got %q", job.Status)
		}
		if job.StateOrProvince != "CA" {
			t.Errorf("expected state to be upper-cased, got %q", job.StateOrProvince)
		}
		if job.StartedAt != nil || job.CompletedAt != nil {
			t.Error("timestamps must be unset at creation")
		}
	})

	t.Run("Empty State", func(t *testing.T) {
		if _, err := NewScanJob("  ", nil); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("State Code Too Long", func(t *testing.T) {
		if _, err := NewScanJob(strings.Repeat("X", 9), nil); !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestScanJobLifecycle(t *testing.T) {
	now := time.Now()

	t.Run("Happy Path", func(t *testing.T) {
		job, _ := NewScanJob("CA", nil)
		if err := job.Start(now); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if job.StartedAt == nil {
			t.Fatal("StartedAt must be set on the Running transition")
		}
		started := *job.StartedAt
		if err := job.Complete(now.Add(time.Minute)); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if job.CompletedAt == nil {
			t.Fatal("CompletedAt must be set on a terminal transition")
		}
		if !job.StartedAt.Equal(started) {
			t.Error("StartedAt changed after the Running transition")
		}
	})

	t.Run("No Transition Out Of Terminal", func(t *testing.T) {
		job, _ := NewScanJob("CA", nil)
		_ = job.Start(now)
		_ = job.Complete(now)
		completedAt := *job.CompletedAt

		if err := job.Fail(now, "late failure"); err == nil {
			t.Error("expected failing a completed job to error")
		}
		if err := job.Cancel(now, "late cancel"); err == nil {
			t.Error("expected cancelling a completed job to error")
		}
		if err := job.Start(now); err == nil {
			t.Error("expected restarting a completed job to error")
		}
		if !job.CompletedAt.Equal(completedAt) {
			t.Error("CompletedAt changed after terminal transition")
		}
	})

	t.Run("Fail From Pending", func(t *testing.T) {
		job, _ := NewScanJob("CA", nil)
		if err := job.Fail(now, "could not begin"); err != nil {
			t.Fatalf("expected pending job to be failable, got %v", err)
		}
		if job.Status != ScanFailed || job.FailureReason != "could not begin" {
			t.Errorf("unexpected terminal state: %q %q", job.Status, job.FailureReason)
		}
	})

	t.Run("Cancel From Running", func(t *testing.T) {
		job, _ := NewScanJob("CA", nil)
		_ = job.Start(now)
		if err := job.Cancel(now, "operator request"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if job.Status != ScanCancelled {
			t.Errorf("expected cancelled, got %q", job.Status)
		}
		if !job.IsTerminal() {
			t.Error("cancelled job must be terminal")
		}
	})

	t.Run("Complete Requires Running", func(t *testing.T) {
		job, _ := NewScanJob("CA", nil)
		if err := job.Complete(now); err == nil {
			t.Error("expected completing a pending job to error")
		}
	})
}
