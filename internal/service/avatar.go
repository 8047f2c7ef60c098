package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"log/slog"

	"github.com/tasknest/tasknest/internal/core"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const (
	defaultAvatarMaxBytes = 2 << 20 // 2 MiB upload cap
	defaultAvatarSize     = 256
)

// AvatarServiceOptions groups dependencies for AvatarService.
type AvatarServiceOptions struct {
	Users  core.UserRepository // Required: user repository
	Logger *slog.Logger        // Optional: structured logger

	// MaxBytes caps the accepted upload size. Defaults to 2 MiB.
	MaxBytes int
	// Size is the output edge length in pixels. Defaults to 256.
	Size int
}

// AvatarService processes avatar uploads: decode, square center-crop,
// downscale, and store as PNG alongside the user row.
type AvatarService struct {
	users    core.UserRepository
	logger   *slog.Logger
	maxBytes int
	size     int
}

// NewAvatarService constructs a new AvatarService.
func NewAvatarService(opts AvatarServiceOptions) (*AvatarService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultAvatarMaxBytes
	}
	size := opts.Size
	if size <= 0 {
		size = defaultAvatarSize
	}
	return &AvatarService{
		users:    opts.Users,
		logger:   logger.With("component", "avatar_service"),
		maxBytes: maxBytes,
		size:     size,
	}, nil
}

// Upload validates, normalizes, and stores an avatar image. PNG and JPEG
// inputs are accepted; the stored form is always a square PNG.
func (s *AvatarService) Upload(ctx context.Context, userID string, data []byte) error {
	if len(data) == 0 {
		return apperrors.ValidationField("avatar", "Avatar file is empty.")
	}
	if len(data) > s.maxBytes {
		return apperrors.ValidationField("avatar", "Avatar file is too large.")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return apperrors.ValidationField("avatar", "Avatar must be a PNG or JPEG image.")
	}
	if format != "png" && format != "jpeg" {
		return apperrors.ValidationField("avatar", "Avatar must be a PNG or JPEG image.")
	}

	normalized := scaleSquare(centerCropSquare(img), s.size)

	var buf bytes.Buffer
	if err := png.Encode(&buf, normalized); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode avatar")
	}

	if err := s.users.UpdateAvatar(ctx, core.UpdateAvatarParams{
		UserID:      userID,
		Data:        buf.Bytes(),
		ContentType: "image/png",
	}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "avatar updated", "user_id", userID, "bytes", buf.Len())
	return nil
}

// Get returns the stored avatar bytes and content type.
func (s *AvatarService) Get(ctx context.Context, userID string) ([]byte, string, error) {
	return s.users.GetAvatar(ctx, userID)
}

// centerCropSquare crops the largest centered square out of img.
func centerCropSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}
	edge := min(w, h)
	x0 := b.Min.X + (w-edge)/2
	y0 := b.Min.Y + (h-edge)/2
	rect := image.Rect(x0, y0, x0+edge, y0+edge)

	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	out := image.NewRGBA(image.Rect(0, 0, edge, edge))
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			out.Set(x, y, img.At(x0+x, y0+y))
		}
	}
	return out
}

// scaleSquare resizes a square image to edge*edge with nearest-neighbor
// sampling. Avatars are small enough that interpolation quality is not
// worth a dependency.
func scaleSquare(img image.Image, edge int) image.Image {
	b := img.Bounds()
	src := b.Dx()
	if src == edge {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, edge, edge))
	for y := 0; y < edge; y++ {
		sy := b.Min.Y + y*src/edge
		for x := 0; x < edge; x++ {
			sx := b.Min.X + x*src/edge
			out.Set(x, y, img.At(sx, sy))
		}
	}
	return out
}
