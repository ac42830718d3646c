package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bwise1/lookaround/internal/destinations"
	"github.com/bwise1/lookaround/internal/detail"
	"github.com/bwise1/lookaround/internal/export"
	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/internal/store"
	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/tracing"
	"github.com/bwise1/lookaround/util/values"
	"github.com/sirupsen/logrus"
)

// ServerResponse is the envelope of every JSON response.
type ServerResponse struct {
	Err        error       `json:"-"`
	Message    string      `json:"message"`
	Status     string      `json:"status"`
	StatusCode int         `json:"-"`
	Data       interface{} `json:"data,omitempty"`
}

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	fields := logrus.Fields{"status": status}
	if tc != nil {
		fields["request_id"] = tc.RequestID
		fields["request_source"] = tc.RequestSource
	}
	entry := logger.WithFields(fields).WithError(err)
	if util.StatusCode(status) >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	return &ServerResponse{
		Err:        err,
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

// errorStatus maps domain errors to response statuses.
func errorStatus(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		return values.NotFound
	case errors.Is(err, destinations.ErrEmptyName), errors.Is(err, model.ErrInvalidRegion):
		return values.BadRequestBody
	case errors.Is(err, detail.ErrActionDisabled):
		return values.NotAllowed
	case errors.Is(err, session.ErrInvalidTransition):
		return values.Conflict
	case errors.Is(err, export.ErrExportDisabled):
		return values.Unprocessable
	default:
		return values.Error
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	resp := &ServerResponse{
		Err:        err,
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
	respByte, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		http.Error(w, message, resp.StatusCode)
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

func writeJSONResponse(w http.ResponseWriter, content []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(content); err != nil {
		logger.WithError(err).Warn("unable to write response")
	}
}
