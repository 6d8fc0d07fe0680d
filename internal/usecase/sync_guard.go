package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/infrastructure/redis"
)

const syncLeaseKey = "crm-sync:sync:lease"

// Lease is a distributed lock with an owner token
type Lease interface {
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, value string) (bool, error)
	Extend(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
}

// SyncGuard allows a single sync run at a time, across both sync kinds
type SyncGuard interface {
	// TryAcquire returns a release func when the guard was free
	TryAcquire(ctx context.Context) (release func(), ok bool)
}

type syncGuard struct {
	running atomic.Bool
	lease   Lease
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
}

func NewSyncGuard(cfg *config.Config, redisClient *redis.RedisClient, logger *zap.Logger) SyncGuard {
	var lease Lease
	if redisClient != nil {
		lease = redisClient
	}
	return newSyncGuard(lease, cfg.Sync.LeaseTTL(), logger)
}

func newSyncGuard(lease Lease, ttl time.Duration, logger *zap.Logger) *syncGuard {
	return &syncGuard{
		lease:  lease,
		ttl:    ttl,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

func (g *syncGuard) TryAcquire(ctx context.Context) (func(), bool) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, false
	}

	if g.lease == nil {
		return func() { g.running.Store(false) }, true
	}

	owner := uuid.NewString()
	acquired, err := g.lease.Acquire(ctx, syncLeaseKey, owner, g.ttl)
	if err != nil {
		// Redis unavailable: the in-process flag still prevents local overlap
		g.logger.Warn("Failed to acquire sync lease, continuing with local guard only", zap.Error(err))
		return func() { g.running.Store(false) }, true
	}
	if !acquired {
		holder, _ := g.lease.Get(ctx, syncLeaseKey)
		g.logger.Info("Sync lease held by another instance", zap.String("holder", holder))
		g.running.Store(false)
		return nil, false
	}

	leaseCtx := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go g.renew(leaseCtx, owner, stop, done)

	return func() {
		close(stop)
		<-done
		if _, err := g.lease.Release(leaseCtx, syncLeaseKey, owner); err != nil {
			g.logger.Warn("Failed to release sync lease", zap.Error(err))
		}
		g.running.Store(false)
	}, true
}

// renew extends the lease every third of its TTL until stop is closed
func (g *syncGuard) renew(ctx context.Context, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := g.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			extended, err := g.lease.Extend(ctx, syncLeaseKey, owner, g.ttl)
			switch {
			case err != nil:
				g.logger.Warn("Failed to extend sync lease", zap.Error(err))
			case !extended:
				g.logger.Warn("Sync lease lost, another instance may start a run", zap.String("owner", owner))
			}
		}
	}
}
