package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierworks/atelier-backend/pkg/logger"
)

const defaultSweepBatchSize = 100

type consultationExpirer interface {
	ExpireDueConsultations(ctx context.Context, now time.Time, limit int) (int, error)
}

// ConsultationExpiryJobParams configure the consultation timeout sweep.
type ConsultationExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    consultationExpirer
	BatchSize int
}

// NewConsultationExpiryJob builds the job that closes consultations whose
// timeout has passed. Expired consultations leave their orders parked in the
// consultation phase.
func NewConsultationExpiryJob(params ConsultationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &consultationExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type consultationExpiryJob struct {
	logg      *logger.Logger
	orders    consultationExpirer
	batchSize int
	now       func() time.Time
}

func (j *consultationExpiryJob) Name() string { return "consultation-expiry" }

func (j *consultationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireDueConsultations(ctx, j.now().UTC(), j.batchSize)
	logCtx := j.logg.WithField(ctx, "expired", expired)
	if err != nil {
		return fmt.Errorf("consultation expiry sweep: %w", err)
	}
	j.logg.Info(logCtx, "consultation expiry sweep complete")
	return nil
}
