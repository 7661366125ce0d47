package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/log"
)

// CodeInvalidRequest marks a body or query that could not be decoded.
const CodeInvalidRequest catalog.Code = "INVALID_REQUEST"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure.
type ErrorBody struct {
	Code      catalog.Code `json:"code"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Details   any          `json:"details,omitempty"`
}

var statusByCode = map[catalog.Code]int{
	catalog.CodeIntentNotSupported:  http.StatusNotFound,
	catalog.CodeParameterValidation: http.StatusBadRequest,
	catalog.CodeComponentValidation: http.StatusBadRequest,
	catalog.CodeIntentValidation:    http.StatusBadRequest,
	catalog.CodeOriginNotAllowed:    http.StatusForbidden,
	catalog.CodeComponentNotFound:   http.StatusInternalServerError,
	catalog.CodeRendererUnavailable: http.StatusNotImplemented,
	catalog.CodeDataProvider:        http.StatusBadGateway,
	catalog.CodeConfiguration:       http.StatusInternalServerError,
	catalog.CodeInternal:            http.StatusInternalServerError,
	CodeInvalidRequest:              http.StatusBadRequest,
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if status, ok := statusByCode[catalog.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return e.err }

func invalidRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatHTTP, "Failed to encode JSON response", "error", err)
	}
}

// writeError translates err into the structured error reply.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorStatus(w, r, 0, err)
}

// writeErrorStatus is writeError with an explicit status; zero derives it from err.
func (h *Handler) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := ErrorBody{Message: err.Error(), Timestamp: h.now().UTC(), Details: catalog.DetailsOf(err)}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		body.Code = CodeInvalidRequest
		if reqErr.err != nil {
			body.Details = reqErr.err.Error()
		}
	} else {
		body.Code = catalog.CodeOf(err)
	}
	if status == 0 {
		status = statusByCode[body.Code]
		if status == 0 {
			status = http.StatusInternalServerError
		}
	}

	fields := []any{"method", r.Method, "path", r.URL.Path, "status", status, "code", string(body.Code), "request_id", RequestIDFrom(r.Context())}
	if status >= http.StatusInternalServerError {
		log.ErrorErr(log.CatHTTP, "Request failed", err, fields...)
	} else {
		log.Debug(log.CatHTTP, "Request rejected", append(fields, "error", err.Error())...)
	}
	h.writeJSON(w, status, ErrorResponse{Error: body})
}
