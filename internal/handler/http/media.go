package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vetclinic/sitemedia/internal/storage"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/httputil"
)

// MediaHandler serves stored objects for backends that keep the bytes
// in-process (memory, redis).
type MediaHandler struct {
	opener storage.Opener
	logger *slog.Logger
}

// NewMediaHandler creates a handler that reads objects through opener.
func NewMediaHandler(opener storage.Opener, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{opener: opener, logger: logger}
}

// ServeObject handles GET /media/*.
func (h *MediaHandler) ServeObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("object key is required"), h.logger)
		return
	}

	obj, err := h.opener.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			err = apperrors.NotFound("object", key)
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if cc := obj.CacheControlHeader(); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, key, obj.ModTime, bytes.NewReader(obj.Data))
}
