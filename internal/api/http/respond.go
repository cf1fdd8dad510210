package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
)

// ValidationError is a malformed request, reported with per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// decodeJSON decodes the body into dst; type mismatches become field errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	if err := dec.Decode(dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return invalid(te.Field, "must be "+kindName(te.Type.Kind().String()))
		}
		var fe *idListError
		if errors.As(err, &fe) {
			return invalid(fe.field, fe.msg)
		}
		return invalid("body", "malformed JSON")
	}
	return nil
}

func kindName(k string) string {
	switch {
	case strings.HasPrefix(k, "int"), strings.HasPrefix(k, "uint"):
		return "an integer"
	case strings.HasPrefix(k, "float"):
		return "a number"
	case k == "slice":
		return "an array"
	case k == "bool":
		return "a boolean"
	case k == "map", k == "struct":
		return "an object"
	}
	return "a " + k
}

// idList accepts ids as JSON strings or integers.
type idList []string

type idListError struct{ field, msg string }

func (e *idListError) Error() string { return e.field + ": " + e.msg }

func (l *idList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return &idListError{"favoriteExamIds", "must be an array"}
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, strings.TrimSpace(s))
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err == nil {
			if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				out = append(out, n.String())
				continue
			}
		}
		return &idListError{"favoriteExamIds", "ids must be strings or integers"}
	}
	*l = out
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, exam.ErrInvalidPaper),
		errors.Is(err, invitation.ErrInvalidRequest),
		errors.Is(err, assignment.ErrDeadlineNotFuture):
		return http.StatusBadRequest
	case errors.Is(err, exam.ErrPaperNotFound),
		errors.Is(err, assignment.ErrNotFound),
		errors.Is(err, assignment.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, assignment.ErrConflict),
		errors.Is(err, exam.ErrPaperExists):
		return http.StatusConflict
	case errors.Is(err, assignment.ErrExpired):
		return http.StatusGone
	case errors.Is(err, assignment.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body["error"] = "validation failed"
		body["fields"] = ve.Fields
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func required(fields map[string]string) error {
	ve := &ValidationError{Fields: map[string]string{}}
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			ve.Fields[k] = "required"
		}
	}
	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}
