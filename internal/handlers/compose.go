package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"verticlipper/internal/apperr"
	"verticlipper/internal/composer"

	"github.com/gorilla/mux"
)

// maxComposeBody caps the JSON body of a compose request.
const maxComposeBody = 64 << 10

// Compose renders the vertical video for a session.
// POST /api/compose
func (h *Handlers) Compose(w http.ResponseWriter, r *http.Request) {
	if h.overloaded(w, r, "compose") {
		return
	}
	req, err := decodeComposeRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.composer.Compose(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, result)
}

func decodeComposeRequest(w http.ResponseWriter, r *http.Request) (composer.Request, error) {
	var req composer.Request

	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return req, apperr.Validation(apperr.CodeInvalidRequest, "Expected an application/json body.")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxComposeBody))
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, apperr.Validation(apperr.CodeInvalidRequest, "Request body too large.")
		}
		return req, apperr.Validation(apperr.CodeInvalidRequest, "Invalid request body: %v", err)
	}

	if strings.TrimSpace(req.SessionID) == "" {
		return req, apperr.Validation(apperr.CodeInvalidRequest, "sessionid is required.")
	}
	return req, nil
}

// GetComposition returns the latest recorded composition of a session.
// GET /api/compose/{sessionId}
func (h *Handlers) GetComposition(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if h.history == nil {
		h.writeError(w, r, apperr.NotFound(apperr.CodeSessionNotFound, "Composition history is disabled."))
		return
	}

	c, err := h.history.LatestComposition(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, c)
}
