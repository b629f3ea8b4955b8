package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
	"legacy-scheduler/internal/telemetry"
)

// Grants is the access-grant registry. A grant binds a future trustee
// identity to a job through a single-use access code.
type Grants struct {
	store GrantStore
	users Directory
	log   zerolog.Logger
}

func NewGrants(store GrantStore, users Directory, log zerolog.Logger) *Grants {
	return &Grants{store: store, users: users, log: log}
}

// Claim binds the trustee to the grant for accessCode, strictly once. An
// unknown code is InvalidArgument, a grant that already left PENDING is
// InvalidState. The store serializes concurrent claims on the same code.
func (g *Grants) Claim(ctx context.Context, accessCode string, trusteeID uuid.UUID) (models.JobRecipient, error) {
	if accessCode == "" {
		return models.JobRecipient{}, invalidArgument("access code is required")
	}
	ok, err := g.users.UserExists(ctx, trusteeID)
	if err != nil {
		return models.JobRecipient{}, Persistence("lookup trustee", err)
	}
	if !ok {
		return models.JobRecipient{}, notFound("trustee %s", trusteeID)
	}

	grant, err := g.store.ClaimGrant(ctx, accessCode, trusteeID, time.Now().UTC())
	if err != nil {
		return models.JobRecipient{}, err
	}
	telemetry.GrantsClaimed.Inc()
	g.log.Info().
		Str("grant_id", grant.ID.String()).
		Str("trustee_id", trusteeID.String()).
		Msg("access grant claimed")
	return grant, nil
}

// Validate looks up a code without claiming it, so a not-yet-registered
// recipient can check the code is still live. Only PENDING grants validate.
func (g *Grants) Validate(ctx context.Context, accessCode string) (models.JobRecipient, error) {
	if accessCode == "" {
		return models.JobRecipient{}, invalidArgument("access code is required")
	}
	grant, found, err := g.store.GrantByCode(ctx, accessCode)
	if err != nil {
		return models.JobRecipient{}, Persistence("lookup access code", err)
	}
	if !found {
		return models.JobRecipient{}, invalidArgument("unknown access code")
	}
	if grant.Status != models.GrantPending {
		return models.JobRecipient{}, invalidState("access code is %s", grant.Status)
	}
	return grant, nil
}

// Revoke permanently disables a grant. Revoking an already-revoked grant is a
// no-op, not an error; there is no way back from REVOKED.
func (g *Grants) Revoke(ctx context.Context, grantID uuid.UUID) error {
	grant, found, err := g.store.GetGrant(ctx, grantID)
	if err != nil {
		return Persistence("get grant", err)
	}
	if !found {
		return notFound("grant %s", grantID)
	}
	if grant.Status == models.GrantRevoked {
		return nil
	}
	if err := g.store.RevokeGrant(ctx, grantID); err != nil {
		return Persistence("revoke grant", err)
	}
	telemetry.GrantsRevoked.Inc()
	return nil
}
