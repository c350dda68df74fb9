package importer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// MaxItemsPerRequest caps rows accepted by one import request.
const MaxItemsPerRequest = 5000

// Enqueuer hands a run to the background worker.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, runID string, items []Item) error
}

// ProgressStore is the tracker surface the handler needs.
type ProgressStore interface {
	Queue(ctx context.Context, runID string, total int) error
	Get(ctx context.Context, runID string) (Progress, error)
}

// Handler accepts import uploads and reports their progress.
type Handler struct {
	logger   *slog.Logger
	enqueuer Enqueuer
	progress ProgressStore
	guard    func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. guard wraps the upload route; nil leaves it open.
func NewHandler(logger *slog.Logger, enqueuer Enqueuer, progress ProgressStore, guard func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, enqueuer: enqueuer, progress: progress, guard: guard}
}

// MountRoutes registers import routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Get("/{id}", h.getProgress)
		r.Group(func(r chi.Router) {
			if h.guard != nil {
				r.Use(h.guard)
			}
			r.Post("/", h.enqueue)
		})
	})
}

type enqueueResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Items  int    `json:"items"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := Decode(bytes.NewReader(body), requestFormat(r))
	if err != nil {
		httpx.RespondError(w, httpx.Classify(httpx.ErrValidation, err))
		return
	}
	switch {
	case len(items) == 0:
		httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "no items to import")
		return
	case len(items) > MaxItemsPerRequest:
		httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "too many items in one request")
		return
	}

	runID := uuid.NewString()
	ctx := r.Context()
	if err := h.progress.Queue(ctx, runID, len(items)); err != nil {
		h.fail(w, r, "queue import progress", err)
		return
	}
	if err := h.enqueuer.EnqueueImport(ctx, runID, items); err != nil {
		h.fail(w, r, "enqueue import", err)
		return
	}
	h.logger.InfoContext(ctx, "catalog import queued", slog.String("run_id", runID), slog.Int("items", len(items)))
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{RunID: runID, Status: StatusQueued, Items: len(items)})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(runID); err != nil {
		httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "invalid run id")
		return
	}
	progress, err := h.progress.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			httpx.RespondError(w, httpx.Classify(httpx.ErrNotFound, err))
			return
		}
		h.fail(w, r, "load import progress", err)
		return
	}
	httpx.JSON(w, http.StatusOK, progress)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	httpx.RespondError(w, httpx.Classify(httpx.ErrUnavailable, err))
}

func requestFormat(r *http.Request) Format {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return FormatJSON
	}
	switch mediaType {
	case "text/csv":
		return FormatCSV
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	}
	return FormatJSON
}
