package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidBody = apperr.InvalidInput("invalid_request_body", "could not parse JSON")
	errInvalidID   = apperr.InvalidInput("invalid_id", "id must be a positive integer")
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": code, "details": message}. Internal
// errors are logged and never echo their cause.
func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	ae := apperr.As(err)
	status := statusFor(ae.Kind)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, status, ErrorResponse{Error: "internal_error", Details: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: ae.Code, Details: ae.Message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Withf(errInvalidBody, "request body is empty")
		}
		return apperr.Wrap(errInvalidBody, err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
