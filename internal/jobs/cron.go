package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/repo"
)

type service interface {
	EvictExpiredMappings(now time.Time) int
}

type auditPruner interface {
	PruneAudit(ctx context.Context, cutoff time.Time) (int64, error)
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	repo auditPruner
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	_, _ = c.AddFunc(cfg.HousekeepingCron, cr.housekeeping)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) housekeeping() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if evicted := cr.svc.EvictExpiredMappings(time.Now()); evicted > 0 {
		cr.log.Info().Int("evicted", evicted).Msg("cron: status mapping cache eviction")
	}

	// audit pruning touches shared state; only one replica runs it
	const lockKey int64 = 731904
	ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
	if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
	if !ok { cr.log.Info().Msg("cron: already running elsewhere"); return }
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()

	cutoff := time.Now().Add(-cr.cfg.AuditRetention)
	pruned, err := cr.repo.PruneAudit(ctx, cutoff)
	if err != nil { cr.log.Error().Err(err).Msg("cron: audit prune failed"); return }
	if pruned > 0 {
		cr.log.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("cron: audit rows pruned")
	}
}
