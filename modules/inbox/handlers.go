package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stackadvisor/advisorkit/pkg/logger"
	"github.com/stackadvisor/advisorkit/pkg/notifications"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	streamBuffer      = 16
	heartbeatInterval = 25 * time.Second
)

type handlers struct {
	svc    Service
	logger *slog.Logger
}

// Option configures the inbox handlers.
type Option func(*handlers)

// WithLogger sets the module logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *handlers) {
		if log != nil {
			h.logger = log
		}
	}
}

func newHandlers(svc Service, opts ...Option) *handlers {
	h := &handlers{
		svc:    svc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_limit", err.Error())
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_offset", err.Error())
		return
	}

	opts := notifications.ListOptions{
		Limit:      limit,
		Offset:     offset,
		OnlyUnread: r.URL.Query().Get("unread") == "true",
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	notifs, err := h.svc.List(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, notifs)
}

func (h *handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	count, err := h.svc.CountUnread(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]int{"count": count})
}

func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.svc.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.svc.MarkAllRead(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	prefs, err := h.svc.GetPreferences(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, prefs)
}

func (h *handlers) updatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var update notifications.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	prefs, err := h.svc.UpdatePreferences(r.Context(), userID, update)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, prefs)
}

// stream pushes delivered notifications to the client as SSE events. The
// subscription callback only enqueues into a buffered channel; the HTTP
// goroutine owns all writing. A client that cannot keep up loses messages
// rather than blocking the hub, and catches up via the list endpoint.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	events := make(chan notifications.Notification, streamBuffer)
	unsubscribe, err := h.svc.Subscribe(userID, func(ctx context.Context, n notifications.Notification) error {
		select {
		case events <- n:
		default:
			// Slow client: drop rather than stall the publisher.
		}
		return nil
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n := <-events:
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.LogAttrs(r.Context(), slog.LevelError, "Failed to encode notification for SSE",
					logger.NotificationID(n.ID),
					logger.Error(err),
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case notifications.IsTransient(err):
		// The caller may retry; surface that instead of masking the failure.
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "temporary storage failure, retry later")
	default:
		h.logger.LogAttrs(r.Context(), slog.LevelError, "Inbox request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, notifications.ErrEmptyUserID) ||
		errors.Is(err, notifications.ErrUnknownKind) ||
		errors.Is(err, notifications.ErrInvalidPriority) ||
		errors.Is(err, notifications.ErrEmptyTitle) ||
		errors.Is(err, notifications.ErrInvalidLimit) ||
		errors.Is(err, notifications.ErrInvalidQuietHours) ||
		errors.Is(err, notifications.ErrInvalidTimezone)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("query parameter %q must be a non-negative integer", name)
	}
	return v, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": errorBody{Code: code, Message: message}})
}
