package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alex-user-go/soltour/internal/details"
	"github.com/alex-user-go/soltour/internal/handoff"
	"github.com/alex-user-go/soltour/internal/middleware"
	"github.com/alex-user-go/soltour/internal/obs"
	"github.com/alex-user-go/soltour/internal/ratelimit"
	"github.com/alex-user-go/soltour/internal/storage"
)

// maxSnapshotBytes bounds a stored snapshot.
const maxSnapshotBytes = 1 << 20

// TabStore is the tab storage exposed to the pages.
type TabStore interface {
	ReadRaw(ctx context.Context, tab, key string) ([]byte, error)
	WriteRaw(ctx context.Context, tab, key string, data []byte) error
	DropTab(ctx context.Context, tab string) error
}

// Handler handles HTTP requests.
type Handler struct {
	store       TabStore
	details     *details.Service
	coordinator *handoff.Coordinator
	rateLimiter *ratelimit.Limiter
	metrics     *obs.Metrics
	logger      *slog.Logger
}

// New creates a new Handler.
func New(
	store TabStore,
	detailsService *details.Service,
	coordinator *handoff.Coordinator,
	rateLimiter *ratelimit.Limiter,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:       store,
		details:     detailsService,
		coordinator: coordinator,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		logger:      logger,
	}
}

// Register mounts the tab API on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.countRequests)

		r.Post("/tabs", h.OpenTab)
		r.Route("/tabs/{tab}", func(r chi.Router) {
			r.Delete("/", h.CloseTab)
			r.Put("/storage/{key}", h.PutStorage)
			r.Get("/storage/{key}", h.GetStorage)
			r.Get("/package", h.GetPackage)
			r.Post("/package/confirm", h.ConfirmPackage)
		})
	})
}

func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.IncRequests()
		next.ServeHTTP(w, r)
	})
}

// OpenTabResponse carries a new tab session id.
type OpenTabResponse struct {
	TabID string `json:"tab_id"`
}

// OpenTab handles POST /tabs.
func (h *Handler) OpenTab(w http.ResponseWriter, r *http.Request) {
	tab := uuid.NewString()
	h.logger.Debug("tab opened", "request_id", middleware.RequestID(r.Context()), "tab_id", tab)
	h.writeJSON(w, http.StatusCreated, OpenTabResponse{TabID: tab})
}

// CloseTab handles DELETE /tabs/{tab}. Every key of the tab is cleared.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DropTab(r.Context(), chi.URLParam(r, "tab")); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutStorage handles PUT /tabs/{tab}/storage/{key}. The body is stored as is.
func (h *Handler) PutStorage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, noticeInvalid, "snapshot too large")
			return
		}
		writeError(w, http.StatusBadRequest, noticeInvalid, "failed to read body")
		return
	}

	if err := h.store.WriteRaw(r.Context(), chi.URLParam(r, "tab"), chi.URLParam(r, "key"), body); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStorage handles GET /tabs/{tab}/storage/{key}.
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ReadRaw(r.Context(), chi.URLParam(r, "tab"), chi.URLParam(r, "key"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// GetPackage handles GET /tabs/{tab}/package?budget=.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	page, err := h.details.Load(r.Context(), chi.URLParam(r, "tab"), budgetParam(r))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// ConfirmPackage handles POST /tabs/{tab}/package/confirm?budget=.
func (h *Handler) ConfirmPackage(w http.ResponseWriter, r *http.Request) {
	tab, err := storage.CanonicalTab(chi.URLParam(r, "tab"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	requestID := middleware.RequestID(r.Context())

	ip := ExtractIP(r)
	if ok, retryAfter := h.rateLimiter.Allow(tab + "|" + ip); !ok {
		h.metrics.IncRateLimited()
		h.logger.Warn("rate limit exceeded", "request_id", requestID, "tab_id", tab, "ip", ip)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, noticeRateLimited, "")
		return
	}

	raw, err := h.details.Resolve(r.Context(), tab, budgetParam(r))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	start := time.Now()
	result, err := h.coordinator.Confirm(r.Context(), tab, raw)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.logger.Info("handoff confirmed",
		"request_id", requestID,
		"tab_id", tab,
		"budget_id", result.BudgetID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func budgetParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("budget"))
}

// ExtractIP extracts the client IP from the request.
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func ExtractIP(r *http.Request) string {
	// Check X-Forwarded-For (first IP in the list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr (strip port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Can't change status after WriteHeader, just log
		h.logger.Error("failed to encode response", "error", err)
	}
}
