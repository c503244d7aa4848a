package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/gigmatch/internal/assignment"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusByKind maps lifecycle error kinds to HTTP status and a stable error code.
var statusByKind = map[assignment.ErrorKind]struct {
	status int
	code   string
}{
	assignment.KindNotFound:         {http.StatusNotFound, "not_found"},
	assignment.KindAlreadyResponded: {http.StatusConflict, "already_responded"},
	assignment.KindConflict:         {http.StatusConflict, "conflict"},
	assignment.KindDeadlinePassed:   {http.StatusGone, "deadline_passed"},
	assignment.KindForbidden:        {http.StatusForbidden, "forbidden"},
	assignment.KindTransient:        {http.StatusServiceUnavailable, "temporarily_unavailable"},
	assignment.KindValidation:       {http.StatusBadRequest, "validation_failed"},
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	if m, ok := statusByKind[assignment.KindOf(err)]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and writes it. Unexpected errors are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ErrValidation
	if errors.As(err, &ve) {
		s.jsonResponse(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Message: ve.Error()})
		return
	}

	var ae *assignment.Error
	if errors.As(err, &ae) {
		if m, ok := statusByKind[ae.Kind]; ok {
			if ae.Kind == assignment.KindTransient {
				s.log.WithError(err).WithField("path", r.URL.Path).Warn("transient store failure")
				w.Header().Set("Retry-After", "1")
			}
			s.jsonResponse(w, m.status, errorBody{Error: m.code, Message: ae.Message})
			return
		}
	}

	s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	s.jsonResponse(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
}

// validationError converts validator output into an ErrValidation naming the first bad field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag())}
	}
	return &ErrValidation{Message: err.Error()}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
// An empty body is accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &ErrValidation{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("failed to encode JSON response")
	}
}
