package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierworks/atelier-backend/pkg/logger"
)

type adjustmentExpirer interface {
	ExpireDueAdjustments(ctx context.Context, now time.Time, limit int) (int, error)
}

// AdjustmentExpiryJobParams configure the price proposal deadline sweep.
type AdjustmentExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    adjustmentExpirer
	BatchSize int
}

// NewAdjustmentExpiryJob builds the job that expires price proposals whose
// response deadline has passed. The order's price stands unchanged and its
// single adjustment is not consumed.
func NewAdjustmentExpiryJob(params AdjustmentExpiryJobParams) (Job, error) {
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
	return &adjustmentExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type adjustmentExpiryJob struct {
	logg      *logger.Logger
	orders    adjustmentExpirer
	batchSize int
	now       func() time.Time
}

func (j *adjustmentExpiryJob) Name() string { return "adjustment-expiry" }

func (j *adjustmentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireDueAdjustments(ctx, j.now().UTC(), j.batchSize)
	logCtx := j.logg.WithField(ctx, "expired", expired)
	if err != nil {
		return fmt.Errorf("adjustment expiry sweep: %w", err)
	}
	j.logg.Info(logCtx, "adjustment expiry sweep complete")
	return nil
}
