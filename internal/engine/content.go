package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
)

// URLResolver turns a stored object key into a short-lived download URL.
// Optional; when absent, delivered assets carry no URL.
type URLResolver interface {
	DownloadURL(ctx context.Context, objectKey string) (string, error)
}

// Gate is the trustee read path. Content is exposed only behind the double
// gate: the grant must be REGISTERED and the owning job COMPLETED. A claimed
// grant on an unfired job reveals nothing, and a fired job with no registered
// grant reveals nothing.
type Gate struct {
	grants  GrantStore
	jobs    JobStore
	content ContentStore
	urls    URLResolver // may be nil
	log     zerolog.Logger
}

func NewGate(grants GrantStore, jobs JobStore, content ContentStore, urls URLResolver, log zerolog.Logger) *Gate {
	return &Gate{grants: grants, jobs: jobs, content: content, urls: urls, log: log}
}

// ResolveContentForTrustee returns every message and asset the trustee is
// currently entitled to see.
func (g *Gate) ResolveContentForTrustee(ctx context.Context, trusteeID uuid.UUID) (models.TrusteeContent, error) {
	result := models.TrusteeContent{
		Messages: []models.Message{},
		Assets:   []models.DigitalAsset{},
	}

	grants, err := g.grants.RegisteredGrantsForTrustee(ctx, trusteeID)
	if err != nil {
		return result, Persistence("list registered grants", err)
	}

	for _, grant := range grants {
		job, found, err := g.jobs.GetJob(ctx, grant.JobID)
		if err != nil {
			return result, Persistence("get job", err)
		}
		if !found || job.Status != models.JobCompleted {
			continue
		}

		switch job.JobType {
		case models.JobMessageDelivery:
			msg, found, err := g.content.MessageByID(ctx, job.EntityID)
			if err != nil {
				return result, Persistence("fetch message", err)
			}
			if found {
				result.Messages = append(result.Messages, msg)
			}
		case models.JobAssetDelivery:
			asset, found, err := g.content.AssetByID(ctx, job.EntityID)
			if err != nil {
				return result, Persistence("fetch asset", err)
			}
			if !found {
				continue
			}
			if g.urls != nil {
				url, err := g.urls.DownloadURL(ctx, asset.ObjectKey)
				if err != nil {
					// Metadata is still deliverable without a link.
					g.log.Warn().Err(err).Str("asset_id", asset.ID.String()).Msg("download url failed")
				} else {
					asset.DownloadURL = url
				}
			}
			result.Assets = append(result.Assets, asset)
		}
	}
	return result, nil
}
