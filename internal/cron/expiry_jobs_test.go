package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atelierworks/atelier-backend/pkg/logger"
)

type fakeExpirer struct {
	lastNow   time.Time
	lastLimit int
	expired   int
	err       error
	calls     int
}

func (f *fakeExpirer) ExpireDueConsultations(_ context.Context, now time.Time, limit int) (int, error) {
	return f.record(now, limit)
}

func (f *fakeExpirer) ExpireDueAdjustments(_ context.Context, now time.Time, limit int) (int, error) {
	return f.record(now, limit)
}

func (f *fakeExpirer) record(now time.Time, limit int) (int, error) {
	f.calls++
	f.lastNow = now
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}

func TestConsultationExpiryJobSweeps(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 3}
	jobIface, err := NewConsultationExpiryJob(ConsultationExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    expirer,
		BatchSize: 25,
	})
	if err != nil {
		t.Fatalf("NewConsultationExpiryJob: %v", err)
	}
	job := jobIface.(*consultationExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.calls)
	}
	if !expirer.lastNow.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, expirer.lastNow)
	}
	if expirer.lastLimit != 25 {
		t.Fatalf("expected batch size 25, got %d", expirer.lastLimit)
	}
}

func TestConsultationExpiryJobPropagatesErrors(t *testing.T) {
	jobIface, err := NewConsultationExpiryJob(ConsultationExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: &fakeExpirer{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewConsultationExpiryJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAdjustmentExpiryJobUsesDefaultBatchSize(t *testing.T) {
	expirer := &fakeExpirer{expired: 1}
	jobIface, err := NewAdjustmentExpiryJob(AdjustmentExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: expirer,
	})
	if err != nil {
		t.Fatalf("NewAdjustmentExpiryJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.lastLimit != defaultSweepBatchSize {
		t.Fatalf("expected default batch size, got %d", expirer.lastLimit)
	}
}

func TestExpiryJobConstructorsRequireOrders(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewConsultationExpiryJob(ConsultationExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected error without orders service")
	}
	if _, err := NewAdjustmentExpiryJob(AdjustmentExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected error without orders service")
	}
}
