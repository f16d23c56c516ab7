package auth

import (
	"context"
	"time"

	"github.com/debemdeboas/war-room/internal/repository"
)

// Provisioner creates profiles for identities that do not have one yet,
// in the background, the way a hosted auth platform's signup hook would.
type Provisioner struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	interval   time.Duration
}

func NewProvisioner(identities repository.IdentityRepository, profiles repository.ProfileRepository, interval time.Duration) *Provisioner {
	return &Provisioner{identities: identities, profiles: profiles, interval: interval}
}

// Run provisions until ctx is done.
func (p *Provisioner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := p.ProvisionPending(ctx); err != nil {
			authLogger.Error().Err(err).Msg("Error provisioning profiles")
		} else if n > 0 {
			authLogger.Info().Int("count", n).Msg("Profiles provisioned")
		}
	}
}

// ProvisionPending runs one provisioning pass and returns how many profiles it created.
func (p *Provisioner) ProvisionPending(ctx context.Context) (int, error) {
	pending, err := p.identities.ListUnprovisioned(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range pending {
		if err := p.profiles.CreateProfile(ctx, profileFor(&pending[i])); err != nil {
			authLogger.Warn().Err(err).Str("user_id", string(pending[i].ID)).Msg("Could not provision profile")
			continue
		}
		created++
	}
	return created, nil
}
