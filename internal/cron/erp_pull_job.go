package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mfigueroa/ordercore-backend/internal/erpsync"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

type catalogSyncer interface {
	SyncCatalog(ctx context.Context) (*erpsync.SyncResult, error)
}

// ERPPullJobParams configure the periodic catalog pull.
type ERPPullJobParams struct {
	Logger *logger.Logger
	Syncer catalogSyncer
}

// NewERPPullJob builds the job that refreshes local products from the ERP.
func NewERPPullJob(params ERPPullJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("catalog syncer required")
	}
	return &erpPullJob{logg: params.Logger, syncer: params.Syncer}, nil
}

type erpPullJob struct {
	logg   *logger.Logger
	syncer catalogSyncer
}

func (j *erpPullJob) Name() string { return "erp-catalog-pull" }

func (j *erpPullJob) Run(ctx context.Context) error {
	started := time.Now()
	result, err := j.syncer.SyncCatalog(ctx)
	if err != nil {
		return fmt.Errorf("erp catalog pull: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"synced":      result.Synced,
		"failed":      result.Failed,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if result.Errors != nil {
		j.logg.Warn(logCtx, "erp catalog pull finished with failures")
		return nil
	}
	j.logg.Info(logCtx, "erp catalog pull complete")
	return nil
}
