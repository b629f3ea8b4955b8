package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/models"
)

type memMeta struct {
	mu     sync.Mutex
	assets []models.DigitalAsset
}

func (m *memMeta) CreateAsset(_ context.Context, a models.DigitalAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = append(m.assets, a)
	return nil
}

type memUsers map[uuid.UUID]bool

func (m memUsers) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m[id], nil
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRegisterImageWritesPayloadAndThumbnail(t *testing.T) {
	dir := t.TempDir()
	owner := uuid.New()
	meta := &memMeta{}
	svc := NewService(meta, memUsers{owner: true}, NewLocalStore(dir), 40, 1<<20, zerolog.Nop())

	asset, err := svc.Register(context.Background(), RegisterParams{
		OwnerID:     owner,
		Name:        "beach.png",
		Description: "last summer",
		MimeType:    "image/png",
		Data:        pngPayload(t, 200, 100),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if asset.ThumbnailKey == nil {
		t.Fatal("image asset should get a thumbnail")
	}
	if _, err := os.Stat(filepath.Join(dir, asset.ObjectKey)); err != nil {
		t.Errorf("payload not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, *asset.ThumbnailKey)); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
	if len(meta.assets) != 1 || meta.assets[0].ID != asset.ID {
		t.Errorf("metadata row not recorded: %+v", meta.assets)
	}
}

func TestRegisterNonImageSkipsThumbnail(t *testing.T) {
	owner := uuid.New()
	svc := NewService(&memMeta{}, memUsers{owner: true}, NewLocalStore(t.TempDir()), 40, 1<<20, zerolog.Nop())

	asset, err := svc.Register(context.Background(), RegisterParams{
		OwnerID:  owner,
		Name:     "will.pdf",
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.4 not really"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if asset.ThumbnailKey != nil {
		t.Error("non-image asset must not get a thumbnail")
	}
}

func TestRegisterValidation(t *testing.T) {
	owner := uuid.New()
	svc := NewService(&memMeta{}, memUsers{owner: true}, NewLocalStore(t.TempDir()), 40, 16, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterParams{OwnerID: owner, Data: []byte("x")}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("missing name: got %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Register(ctx, RegisterParams{OwnerID: owner, Name: "empty"}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("empty payload: got %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Register(ctx, RegisterParams{OwnerID: owner, Name: "big", Data: bytes.Repeat([]byte("a"), 32)}); !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("oversize payload: got %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Register(ctx, RegisterParams{OwnerID: uuid.New(), Name: "ok", Data: []byte("x")}); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown owner: got %v, want ErrNotFound", err)
	}
}

func TestMakeThumbnailScalesToWidth(t *testing.T) {
	data := pngPayload(t, 200, 100)
	thumb, err := makeThumbnail(data, 40)
	if err != nil {
		t.Fatalf("makeThumbnail: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %s, want jpeg", format)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 20 {
		t.Errorf("thumbnail is %dx%d, want 40x20", bounds.Dx(), bounds.Dy())
	}

	if _, err := makeThumbnail([]byte("not an image"), 40); err == nil {
		t.Error("expected decode failure for garbage payload")
	}
}
