package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"taskmgr/cmd/internal/auth/session"
)

var errBodyTooLarge = errors.New("request body too large")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
}

// writeSessionError maps session errors to the client envelope. Unknown,
// revoked and expired sessions share one response. Internal detail is logged,
// never echoed.
func writeSessionError(w http.ResponseWriter, log *slog.Logger, event string, err error) {
	switch {
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrUnauthorized):
		writeUnauthorized(w)
	case session.IsTimeout(err):
		log.Warn(event, "err", err, "retryable", true)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
	default:
		log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
}
