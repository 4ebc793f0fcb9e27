// Package retention runs the scheduled purge of closed-out submissions
// older than the configured window. Sweeps are idempotent: a second run
// over the same cutoff finds nothing to delete.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"fairlead/pkg/config"
	"fairlead/pkg/logger"
	"fairlead/pkg/store"
)

// Result summarizes one sweep.
type Result struct {
	Cutoff int64 `json:"cutoff"`
	Purged int   `json:"purged"`
	DryRun bool  `json:"dry_run"`
}

var (
	runMu     sync.Mutex
	storedCfg *config.Config
)

// SetConfig stores the effective config so admin triggers can invoke
// retention runs on-demand.
func SetConfig(cfg *config.Config) {
	storedCfg = cfg
}

// RunImmediate triggers a single sweep using the stored config.
func RunImmediate() (Result, error) {
	if storedCfg == nil {
		return Result{}, fmt.Errorf("no config registered for retention run")
	}
	return runOnce(storedCfg)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	SetConfig(cfg)
	ret := cfg.Retention

	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	if _, err := config.ParsePeriod(ret.Period); err != nil {
		logger.Error("retention_invalid_period", "period", ret.Period, "error", err)
		return nil, err
	}

	// map empty cron to default daily @02:00
	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period, "dry_run", ret.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cfg *config.Config, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := runOnce(cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce performs a single sweep. Only one sweep runs at a time; a
// scheduled tick overlapping an admin trigger queues behind it.
func runOnce(cfg *config.Config) (Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	period, err := config.ParsePeriod(cfg.Retention.Period)
	if err != nil {
		return Result{}, err
	}
	if min := cfg.Retention.MinPeriod; min != "" {
		minD, err := config.ParsePeriod(min)
		if err == nil && period < minD {
			return Result{}, fmt.Errorf("retention period %s below minimum %s", cfg.Retention.Period, min)
		}
	}

	cutoff := time.Now().UTC().Add(-period)
	res := Result{Cutoff: cutoff.UnixNano(), DryRun: cfg.Retention.DryRun}

	if cfg.Retention.DryRun {
		n, err := store.CountSubmissionsBefore(cutoff)
		if err != nil {
			return res, err
		}
		res.Purged = n
		logger.AuditEvent("retention_dry_run", "cutoff", res.Cutoff, "would_purge", n)
		return res, nil
	}

	n, err := store.PurgeSubmissionsBefore(cutoff)
	if err != nil {
		return res, err
	}
	res.Purged = n
	logger.AuditEvent("retention_sweep_complete", "cutoff", res.Cutoff, "purged", n)
	return res, nil
}
