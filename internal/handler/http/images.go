package http

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/internal/service"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/httputil"
	"github.com/vetclinic/sitemedia/pkg/middleware"
	"github.com/vetclinic/sitemedia/pkg/pagination"
)

// multipartOverhead is allowed on top of the file limit for form fields.
const multipartOverhead = 1 << 20

// ImageHandler handles HTTP requests for image endpoints.
type ImageHandler struct {
	service        *service.ImageService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImageHandler creates a new image HTTP handler.
func NewImageHandler(svc *service.ImageService, maxUploadBytes int64, logger *slog.Logger) *ImageHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = domain.MaxFileSize
	}
	return &ImageHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// readSource reads the "file" part and the optimization fields of a
// multipart request.
func (h *ImageHandler) readSource(w http.ResponseWriter, r *http.Request) (domain.SourceImage, domain.Options, error) {
	file, err := httputil.ReadFormFile(w, r, "file", h.maxUploadBytes+multipartOverhead)
	if err != nil {
		return domain.SourceImage{}, domain.Options{}, err
	}
	if int64(len(file.Data)) > h.maxUploadBytes {
		return domain.SourceImage{}, domain.Options{}, apperrors.InvalidInput(
			fmt.Sprintf("file size %d exceeds maximum allowed size of %d bytes", len(file.Data), h.maxUploadBytes))
	}

	opts, err := parseOptions(r)
	if err != nil {
		return domain.SourceImage{}, domain.Options{}, err
	}

	src := domain.SourceImage{
		Name:        file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	}
	return src, opts, nil
}

// parseOptions reads max_width, quality and output_type form values. Absent
// fields stay zero so the optimizer defaults apply.
func parseOptions(r *http.Request) (domain.Options, error) {
	var opts domain.Options

	if v := r.FormValue("max_width"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperrors.InvalidInput("max_width must be an integer")
		}
		opts.MaxWidth = w
	}

	if v := r.FormValue("quality"); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, apperrors.InvalidInput("quality must be a number between 0 and 1")
		}
		opts.Quality = q
	}

	format, err := domain.ParseFormat(r.FormValue("output_type"))
	if err != nil {
		return opts, err
	}
	opts.OutputType = format

	return opts, nil
}

// UploadImage handles POST /api/v1/images (multipart/form-data).
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	src, opts, err := h.readSource(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	img, err := h.service.UploadImage(r.Context(), &service.UploadImageInput{
		Source:     src,
		Folder:     r.FormValue("folder"),
		Options:    opts,
		UploadedBy: middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: img})
}

// OptimizeImage handles POST /api/v1/images/optimize. The optimized bytes
// are returned directly and nothing is stored.
func (h *ImageHandler) OptimizeImage(w http.ResponseWriter, r *http.Request) {
	src, opts, err := h.readSource(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	out, err := h.service.PreviewImage(r.Context(), src, opts)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": out.Name}))
	w.Header().Set("X-Image-Width", strconv.Itoa(out.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(out.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// GetImage handles GET /api/v1/images/{id}.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	img, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: img})
}

// ListImages handles GET /api/v1/images?folder=&page=&per_page=.
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	images, total, err := h.service.ListImages(r.Context(), r.URL.Query().Get("folder"), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(images, total, params))
}

// DeleteImage handles DELETE /api/v1/images/{id}.
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteImage(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
