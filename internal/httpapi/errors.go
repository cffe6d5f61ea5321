package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
)

type errorBody struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	Code         string `json:"code"`
	RequestID    string `json:"request_id,omitempty"`
	CurrentState string `json:"estado_actual,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respond(w, r, status, errorBody{
		Status:    "error",
		Error:     msg,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// classify maps a service error onto an HTTP status and machine code.
// Order matters: wrapped errors may match more than one sentinel and the
// most specific wins. Camera failures wrap device errors shared with the
// tag reader, so the face case comes first.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrNoFaceDetected), errors.Is(err, device.ErrNoFace):
		return http.StatusBadRequest, "no_face_detected"
	case errors.Is(err, service.ErrNoTagDetected), errors.Is(err, device.ErrTimeout), errors.Is(err, device.ErrBusy):
		return http.StatusBadRequest, "no_tag_detected"
	case errors.Is(err, service.ErrEnrollmentStore):
		return http.StatusInternalServerError, "enrollment_store_error"
	case errors.Is(err, service.ErrPassengerNotFound):
		return http.StatusNotFound, "passenger_not_found"
	case errors.Is(err, service.ErrUnknownTag):
		return http.StatusNotFound, "unknown_tag"
	case errors.Is(err, service.ErrUnknownAdmin):
		return http.StatusForbidden, "unknown_admin"
	case errors.Is(err, service.ErrAlreadyBoarded):
		return http.StatusForbidden, "already_boarded"
	case errors.Is(err, service.ErrNoBiometric):
		return http.StatusBadRequest, "no_biometric"
	case errors.Is(err, store.ErrTagInUse):
		return http.StatusBadRequest, "tag_in_use"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError classifies err and writes it. Internal errors are
// logged and reported generically.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("%s error request_id=%s: %v", op, middleware.GetReqID(r.Context()), err)
		msg := "unexpected server error"
		if code == "enrollment_store_error" {
			msg = service.ErrEnrollmentStore.Error()
		}
		writeError(w, r, status, code, msg)
		return
	}

	body := errorBody{
		Status:    "error",
		Error:     err.Error(),
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	}
	var ab *service.AlreadyBoardedError
	if errors.As(err, &ab) {
		body.CurrentState = string(ab.State)
	}
	respond(w, r, status, body)
}
