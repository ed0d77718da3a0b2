// Package credentials manages per-principal token pairs: on-demand
// acquisition for the processor and proactive renewal in the background.
package credentials

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobscout/internal/lead"
)

// acquireBuffer is the margin under which Acquire refreshes inline rather
// than handing out a token about to expire mid-call.
const acquireBuffer = time.Minute

// Provider hands the processor a usable credential for the configured
// principal, refreshing inline when the stored one is about to expire.
type Provider struct {
	store     lead.CredentialStore
	client    lead.CredentialClient
	principal string
	clock     lead.Clock
	logger    *zap.Logger
}

// NewProvider constructs a Provider.
func NewProvider(
	store lead.CredentialStore,
	client lead.CredentialClient,
	principal string,
	clock lead.Clock,
	logger *zap.Logger,
) *Provider {
	return &Provider{
		store:     store,
		client:    client,
		principal: principal,
		clock:     clock,
		logger:    logger,
	}
}

// Acquire returns a credential expected to outlive the next external call.
func (p *Provider) Acquire(ctx context.Context) (lead.Credential, error) {
	cred, err := p.store.Get(ctx, p.principal)
	if err != nil {
		return lead.Credential{}, fmt.Errorf("load credential %s: %w", p.principal, err)
	}
	if !cred.ExpiresWithin(p.clock.Now(), acquireBuffer) {
		return cred, nil
	}
	return p.refresh(ctx, cred)
}

// ForceRefresh renews the stored credential unconditionally. Used after the
// remote side rejected a token the provider still considered valid.
func (p *Provider) ForceRefresh(ctx context.Context) (lead.Credential, error) {
	cred, err := p.store.Get(ctx, p.principal)
	if err != nil {
		return lead.Credential{}, fmt.Errorf("load credential %s: %w", p.principal, err)
	}
	return p.refresh(ctx, cred)
}

func (p *Provider) refresh(ctx context.Context, cred lead.Credential) (lead.Credential, error) {
	renewed, err := p.client.Refresh(ctx, cred)
	if err != nil {
		return lead.Credential{}, fmt.Errorf("refresh credential %s: %w", cred.Principal, err)
	}
	renewed.Principal = cred.Principal
	if err := p.store.Save(ctx, renewed); err != nil {
		return lead.Credential{}, fmt.Errorf("save credential %s: %w", cred.Principal, err)
	}
	p.logger.Info("credential refreshed",
		zap.String("principal", cred.Principal),
		zap.Time("expires_at", renewed.ExpiresAt),
	)
	return renewed, nil
}
