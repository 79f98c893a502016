package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"payos.backend/pkg/logger"
)

// DefaultRegistryRefreshInterval is used when no interval is configured.
const DefaultRegistryRefreshInterval = 5 * time.Minute

type registryRefresher interface {
	Refresh(ctx context.Context) error
}

// RegistryRefreshJob periodically rebinds the handler registry so
// configuration changes take effect without a restart.
type RegistryRefreshJob struct {
	registry registryRefresher
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistryRefreshJob(registry registryRefresher, interval time.Duration) *RegistryRefreshJob {
	if interval <= 0 {
		interval = DefaultRegistryRefreshInterval
	}
	return &RegistryRefreshJob{
		registry: registry,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (j *RegistryRefreshJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting registry refresh job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Registry refresh job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Registry refresh job stopped")
			return
		case <-ticker.C:
			j.refresh(ctx)
		}
	}
}

func (j *RegistryRefreshJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *RegistryRefreshJob) refresh(ctx context.Context) {
	// Refresh keeps the previous mapping on failure and records the outcome.
	if err := j.registry.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Registry refresh failed; keeping previous handlers", zap.Error(err))
	}
}
