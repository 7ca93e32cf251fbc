package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/halvard/munin/internal/apperr"
)

type errResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto HTTP statuses. Remote-side failures
// (unreachable content, truncated trees) surface as 502 so clients can tell
// them apart from local mistakes.
func writeError(w http.ResponseWriter, err error) {
	var fetchErr *apperr.FetchError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrTruncatedTree), errors.As(err, &fetchErr):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		slog.Error("api: internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
