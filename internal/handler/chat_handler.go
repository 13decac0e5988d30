package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"portfolio-api/internal/domain"
	"portfolio-api/internal/service"
	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	chatService service.ChatService
	rateLimiter service.RateLimitService
	logger      *logger.Logger
	perMinute   int
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService service.ChatService, rateLimiter service.RateLimitService, logger *logger.Logger, perMinute int) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		rateLimiter: rateLimiter,
		logger:      logger,
		perMinute:   perMinute,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAppError(w, h.logger, errors.NewValidationError("Invalid request body", nil))
		return
	}

	clientIP := getRealIPAddress(r)
	resp, rateResult, appErr := h.chatService.Chat(ctx, &req, clientIP)

	if rateResult != nil {
		h.setRateLimitHeaders(w, rateResult)
	}
	if appErr != nil {
		if appErr.Type == errors.ErrorTypeRateLimit && rateResult != nil && rateResult.RetryAfterSec > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(rateResult.RetryAfterSec))
		}
		sendAppError(w, h.logger, appErr)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// EndSession handles POST /api/chat/end-session
func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req domain.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		sendAppError(w, h.logger, errors.NewValidationError("session_id is required", nil))
		return
	}

	if appErr := h.chatService.EndSession(r.Context(), req.SessionID); appErr != nil {
		sendAppError(w, h.logger, appErr)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Session ended",
		"session_id": req.SessionID,
	})
}

// ClearSession handles POST /api/chat/clear/{sessionID}
func (h *ChatHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		sendAppError(w, h.logger, errors.NewValidationError("session id is required", nil))
		return
	}

	if appErr := h.chatService.ClearSession(r.Context(), sessionID); appErr != nil {
		sendAppError(w, h.logger, appErr)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Session cleared",
		"session_id": sessionID,
	})
}

// GetSession handles GET /api/session/{sessionID}
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, appErr := h.chatService.GetSession(r.Context(), sessionID)
	if appErr != nil {
		sendAppError(w, h.logger, appErr)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, summary)
}

// Status handles GET /api/status
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, h.logger, http.StatusOK, h.chatService.Status())
}

// setRateLimitHeaders reports the minute window on every chat response
func (h *ChatHandler) setRateLimitHeaders(w http.ResponseWriter, result *domain.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.perMinute))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.rateLimiter.Remaining(result)))
}

// RegisterRoutes registers chat handler routes with the router
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Post("/chat/end-session", h.EndSession)
	r.Post("/chat/clear/{sessionID}", h.ClearSession)
	r.Get("/session/{sessionID}", h.GetSession)
	r.Get("/status", h.Status)
}

// getRealIPAddress extracts the real IP address from the request
func getRealIPAddress(r *http.Request) string {
	// Check for IP in various headers (in order of preference)
	headers := []string{
		"CF-Connecting-IP", // Cloudflare
		"X-Forwarded-For",  // Standard proxy header
		"X-Real-IP",        // Nginx proxy
		"X-Client-IP",      // Apache proxy
		"X-Forwarded",      // Less common
		"Forwarded-For",    // Less common
		"Forwarded",        // Less common
	}

	for _, header := range headers {
		if ip := r.Header.Get(header); ip != "" {
			// X-Forwarded-For can contain multiple IPs, take the first one
			if header == "X-Forwarded-For" {
				if firstIP := getFirstIP(ip); firstIP != "" {
					return firstIP
				}
			} else {
				return ip
			}
		}
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// getFirstIP extracts the first IP from a comma-separated list
func getFirstIP(ips string) string {
	for i, char := range ips {
		if char == ',' || char == ' ' {
			return ips[:i]
		}
	}
	return ips
}
