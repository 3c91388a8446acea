package web

import (
	"errors"
	"net/http"

	"github.com/desertthunder/ytpl/internal/server"
	"github.com/desertthunder/ytpl/internal/shared"
)

type authError struct {
	Error     string `json:"error"`
	NeedsAuth bool   `json:"needsAuth"`
}

// unauthenticated answers requests without a valid session cookie.
func (h *Handlers) unauthenticated(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusUnauthorized, authError{Error: "Not authenticated", NeedsAuth: true})
}

// writeError maps err onto a status and a client-safe message. notFound is the message used for
// [shared.ErrNotFound], which differs per resource.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status, msg := classify(err, notFound)

	logger := h.logger.With("method", r.Method, "path", r.URL.Path, "status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Debug("request rejected", "error", err)
	}

	if status == http.StatusUnauthorized {
		server.WriteJSON(w, status, authError{Error: msg, NeedsAuth: true})
		return
	}
	server.WriteError(w, status, msg)
}

func classify(err error, notFound string) (int, string) {
	var verr *shared.ValidationError

	switch {
	case errors.Is(err, shared.ErrNoCredential),
		errors.Is(err, shared.ErrReauthRequired),
		errors.Is(err, shared.ErrAuthExpired):
		return http.StatusUnauthorized, "Please sign in again"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, shared.ErrQuotaOrPermission):
		return http.StatusForbidden, "YouTube quota exceeded or access denied"
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusInternalServerError, "Server configuration error"
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return http.StatusInternalServerError, "YouTube is unavailable, please try again"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
