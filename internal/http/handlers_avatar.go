package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// avatarBodyLimit leaves headroom over the service-side cap so the
// service produces the user-facing size error, not the transport.
const avatarBodyLimit = 4 << 20

// AvatarHandlers serves avatar upload and retrieval.
type AvatarHandlers struct {
	Svc      *service.AvatarService
	Resolver *procedure.Resolver
	Logger   *slog.Logger
}

// Upload handles PUT /api/me/avatar. The body is the raw image file.
func (h *AvatarHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, avatarBodyLimit)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		WriteAppError(w, apperrors.ValidationField("avatar", "Avatar file is too large."))
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return nil, h.Svc.Upload(ctx, pc.Session.UserID, data)
		})
	serveProc(w, r, proc, http.StatusNoContent)
}

// Get handles GET /api/users/{id}/avatar. Avatars are not secret; any
// signed-in user can fetch another member's picture.
func (h *AvatarHandlers) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			data, contentType, err := h.Svc.Get(ctx, userID)
			if err != nil {
				return nil, err
			}
			return avatarPayload{data: data, contentType: contentType}, nil
		})
	out, err := proc(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	payload := out.(avatarPayload)
	w.Header().Set("Content-Type", payload.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.data); err != nil && h.Logger != nil {
		h.Logger.Error("failed to write avatar response", "error", err)
	}
}

type avatarPayload struct {
	data        []byte
	contentType string
}
