package credentials

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
	"jobscout/internal/metrics"
	"jobscout/internal/settings"
)

// RefresherConfig holds the refresh loop's fixed cadence. The expiry
// look-ahead is a runtime setting.
type RefresherConfig struct {
	Interval time.Duration
}

// Refresher proactively renews credentials whose expiry falls within the
// configured look-ahead window. One credential's failure never blocks the
// others; a credential that cannot be refreshed stays as-is and is retried
// next cycle.
type Refresher struct {
	store    lead.CredentialStore
	client   lead.CredentialClient
	settings *settings.Manager
	clock    lead.Clock
	cfg      RefresherConfig
	logger   *zap.Logger
}

// NewRefresher constructs a Refresher.
func NewRefresher(
	store lead.CredentialStore,
	client lead.CredentialClient,
	mgr *settings.Manager,
	clock lead.Clock,
	cfg RefresherConfig,
	logger *zap.Logger,
) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Refresher{
		store:    store,
		client:   client,
		settings: mgr,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, refreshing until the context finishes.
func (r *Refresher) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.Cycle(context.WithoutCancel(ctx))
		timer.Reset(r.cfg.Interval)
	}
}

// Cycle refreshes every credential expiring within the look-ahead window.
func (r *Refresher) Cycle(ctx context.Context) {
	lookahead := r.settings.Current().CredentialLookahead
	cutoff := r.clock.Now().Add(lookahead)

	expiring, err := r.store.ExpiringBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("expiring credential query failed", zap.Error(err))
		return
	}
	for _, cred := range expiring {
		renewed, err := r.client.Refresh(ctx, cred)
		if err != nil {
			metrics.ObserveCredentialRefresh("failed")
			r.logger.Warn("credential refresh failed",
				zap.String("principal", cred.Principal),
				zap.Error(err),
			)
			continue
		}
		renewed.Principal = cred.Principal
		if err := r.store.Save(ctx, renewed); err != nil {
			metrics.ObserveCredentialRefresh("failed")
			r.logger.Error("save refreshed credential failed",
				zap.String("principal", cred.Principal),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveCredentialRefresh("ok")
		r.logger.Info("credential refreshed",
			zap.String("principal", cred.Principal),
			zap.Time("expires_at", renewed.ExpiresAt),
		)
	}
}
