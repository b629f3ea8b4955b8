package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/models"
)

// MetadataStore is the slice of persistence the asset service needs.
type MetadataStore interface {
	CreateAsset(ctx context.Context, a models.DigitalAsset) error
}

// Service registers digital assets: payload into the object store, metadata
// into Postgres, and a thumbnail for image payloads.
type Service struct {
	meta       MetadataStore
	users      engine.Directory
	objects    ObjectStore
	thumbWidth int
	maxBytes   int64
	log        zerolog.Logger
}

func NewService(meta MetadataStore, users engine.Directory, objects ObjectStore, thumbWidth int, maxBytes int64, log zerolog.Logger) *Service {
	return &Service{
		meta:       meta,
		users:      users,
		objects:    objects,
		thumbWidth: thumbWidth,
		maxBytes:   maxBytes,
		log:        log,
	}
}

// RegisterParams collects inputs for a new asset.
type RegisterParams struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	MimeType    string
	Data        []byte
}

// Register stores the payload and inserts the metadata row. Thumbnail
// generation is best-effort: an undecodable image still registers.
func (s *Service) Register(ctx context.Context, p RegisterParams) (models.DigitalAsset, error) {
	if p.Name == "" {
		return models.DigitalAsset{}, fmt.Errorf("%w: asset name is required", engine.ErrInvalidArgument)
	}
	if len(p.Data) == 0 {
		return models.DigitalAsset{}, fmt.Errorf("%w: asset payload is empty", engine.ErrInvalidArgument)
	}
	if s.maxBytes > 0 && int64(len(p.Data)) > s.maxBytes {
		return models.DigitalAsset{}, fmt.Errorf("%w: asset payload exceeds %d bytes", engine.ErrInvalidArgument, s.maxBytes)
	}
	ok, err := s.users.UserExists(ctx, p.OwnerID)
	if err != nil {
		return models.DigitalAsset{}, engine.Persistence("lookup owner", err)
	}
	if !ok {
		return models.DigitalAsset{}, fmt.Errorf("%w: owner %s", engine.ErrNotFound, p.OwnerID)
	}

	id := uuid.New()
	key := fmt.Sprintf("assets/%s/%s", p.OwnerID, id)
	if _, err := s.objects.Upload(ctx, key, p.Data, p.MimeType); err != nil {
		return models.DigitalAsset{}, engine.Persistence("upload asset", err)
	}

	asset := models.DigitalAsset{
		ID:          id,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		ObjectKey:   key,
		MimeType:    p.MimeType,
		FileSize:    int64(len(p.Data)),
		CreatedAt:   time.Now().UTC(),
	}

	if strings.HasPrefix(p.MimeType, "image/") {
		thumb, err := makeThumbnail(p.Data, s.thumbWidth)
		if err != nil {
			s.log.Warn().Err(err).Str("asset_id", id.String()).Msg("thumbnail generation failed")
		} else {
			thumbKey := fmt.Sprintf("thumbs/%s/%s.jpg", p.OwnerID, id)
			if _, err := s.objects.Upload(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
				s.log.Warn().Err(err).Str("asset_id", id.String()).Msg("thumbnail upload failed")
			} else {
				asset.ThumbnailKey = &thumbKey
			}
		}
	}

	if err := s.meta.CreateAsset(ctx, asset); err != nil {
		return models.DigitalAsset{}, engine.Persistence("create asset", err)
	}
	return asset, nil
}
