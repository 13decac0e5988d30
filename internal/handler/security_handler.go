package handler

import (
	"context"
	"net/http"
	"strconv"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/repository"
	"portfolio-api/internal/service"
	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"

	"github.com/go-chi/chi/v5"
)

const defaultArchiveLimit = 20
const maxArchiveLimit = 100

// SecurityHandler exposes the operator surface of the admission layer.
// All routes here sit behind the admin-key middleware.
type SecurityHandler struct {
	rateLimiter service.RateLimitService
	quota       service.QuotaService
	archive     repository.ConversationRepository // nil when archiving is disabled
	logger      *logger.Logger
	limits      SecurityLimits
}

// SecurityLimits is the configured ceiling set reported by the stats endpoint
type SecurityLimits struct {
	PerMinute  int
	PerHour    int
	PerDay     int
	SessionCap int
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(rateLimiter service.RateLimitService, quota service.QuotaService, archive repository.ConversationRepository, logger *logger.Logger, limits SecurityLimits) *SecurityHandler {
	return &SecurityHandler{
		rateLimiter: rateLimiter,
		quota:       quota,
		archive:     archive,
		logger:      logger,
		limits:      limits,
	}
}

// Stats handles GET /api/security/stats
func (h *SecurityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	blocked, err := h.rateLimiter.ListBlocked(ctx)
	if err != nil {
		sendAppError(w, h.logger, errors.NewInternalError("Failed to list blocked IPs", err))
		return
	}

	used := h.quotaUsage(ctx)

	sendJSON(w, h.logger, http.StatusOK, &domain.SecurityStats{
		Blocked:        blocked,
		QuotaUsedToday: used,
		QuotaLimit:     h.quota.Limit(),
		LimitPerMinute: h.limits.PerMinute,
		LimitPerHour:   h.limits.PerHour,
		LimitPerDay:    h.limits.PerDay,
		SessionCap:     h.limits.SessionCap,
	})
}

// Unblock handles POST /api/security/unblock/{ip}
func (h *SecurityHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		sendAppError(w, h.logger, errors.NewValidationError("ip is required", nil))
		return
	}

	if err := h.rateLimiter.Unblock(r.Context(), ip); err != nil {
		sendAppError(w, h.logger, errors.NewNotFoundError(err.Error()))
		return
	}

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "IP unblocked",
		"ip":      ip,
	})
}

// Archives handles GET /api/security/archives
func (h *SecurityHandler) Archives(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		sendAppError(w, h.logger, errors.NewNotFoundError("Conversation archiving is not configured"))
		return
	}

	limit := defaultArchiveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxArchiveLimit {
		limit = maxArchiveLimit
	}

	archives, err := h.archive.ListRecent(r.Context(), limit)
	if err != nil {
		sendAppError(w, h.logger, errors.NewInternalError("Failed to list archived conversations", err))
		return
	}

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(archives),
		"archives": archives,
	})
}

// ArchiveBySession handles GET /api/security/archives/{session_id}
func (h *SecurityHandler) ArchiveBySession(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		sendAppError(w, h.logger, errors.NewNotFoundError("Conversation archiving is not configured"))
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		sendAppError(w, h.logger, errors.NewValidationError("session_id is required", nil))
		return
	}

	archive, err := h.archive.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		sendAppError(w, h.logger, errors.NewInternalError("Failed to load archived conversation", err))
		return
	}
	if archive == nil {
		sendAppError(w, h.logger, errors.NewNotFoundError("Archived conversation not found"))
		return
	}

	sendJSON(w, h.logger, http.StatusOK, archive)
}

func (h *SecurityHandler) quotaUsage(ctx context.Context) int64 {
	used, err := h.quota.Usage(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read quota usage")
		return 0
	}
	return used
}

// RegisterRoutes registers security handler routes with the router
func (h *SecurityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/security", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/archives", h.Archives)
		r.Get("/archives/{session_id}", h.ArchiveBySession)
		r.Post("/unblock/{ip}", h.Unblock)
	})
}
