package uploads

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// multipart framing overhead on top of the file cap
const maxRequestBytes = MaxUploadBytes + 1<<20

// Handler manages the billing upload endpoint.
type Handler struct {
	service  *Service
	recorder *audit.Recorder
}

// NewHandler builds the upload handler.
func NewHandler(service *Service, recorder *audit.Recorder) *Handler {
	return &Handler{service: service, recorder: recorder}
}

// MountRoutes registers upload routes; mount behind the admin role gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleUpload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "File Too Large",
				"the billing file exceeds the upload limit")
			return
		}
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	receipt, reference, err := h.service.Forward(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			httpx.ProblemWith(w, http.StatusBadRequest, "Unsupported File",
				shared.UserSafeMessage(err), map[string]any{"allowed": AllowedExtensions()})
			return
		}
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     actorEmail(r),
		Action:    audit.ActionUpload,
		Resource:  "upload:" + receipt.ID,
		RequestID: middleware.GetReqID(r.Context()),
		Detail: map[string]any{
			"filename":  receipt.Filename,
			"reference": reference,
			"size":      header.Size,
		},
	})
	httpx.JSON(w, http.StatusCreated, receipt)
}

func actorEmail(r *http.Request) string {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		return principal.Email
	}
	return ""
}
