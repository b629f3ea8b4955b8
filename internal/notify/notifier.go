package notify

import (
	"context"

	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
)

// Notifier delivers an access-code invitation to a recipient. Transport is an
// external concern; implementations must not mutate engine state.
type Notifier interface {
	SendInvitation(ctx context.Context, inv models.Invitation) error
}

// LogNotifier writes invitations to the structured log instead of a real
// transport. Default for dev and for deployments that hook delivery up to an
// external mail relay reading the log stream.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendInvitation(_ context.Context, inv models.Invitation) error {
	n.log.Info().
		Str("email", inv.Email).
		Str("job_id", inv.JobID.String()).
		Msg("access-code invitation")
	return nil
}
