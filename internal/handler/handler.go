// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20 // 1 MB

var errBodyTooLarge = errors.New("request body too large")

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string, errs any) {
	writeJSON(w, status, Envelope{Success: false, Message: msg, Errors: errs})
}

// writeError maps err to a status code and envelope. Causes of 5xx responses
// are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var domainErr *liberrors.Error
	if !errors.As(err, &domainErr) {
		log.ErrorContext(r.Context(), "unhandled error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeFail(w, http.StatusInternalServerError, "Internal Server Error", nil)
		return
	}

	switch domainErr.Kind {
	case liberrors.KindValidation:
		writeFail(w, http.StatusBadRequest, domainErr.Message, fieldErrors(domainErr))
	case liberrors.KindStorageUnavailable:
		log.ErrorContext(r.Context(), "storage unavailable",
			slog.String("op", domainErr.Reason),
			slog.String("path", r.URL.Path),
			slog.Any("error", domainErr.Unwrap()),
		)
		writeFail(w, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
	default:
		writeFail(w, domainErr.HTTPStatus(), domainErr.Message, nil)
	}
}

func fieldErrors(e *liberrors.Error) []FieldError {
	if details, ok := e.Details.(map[string]string); ok {
		out := make([]FieldError, 0, len(details))
		for _, field := range slices.Sorted(maps.Keys(details)) {
			out = append(out, FieldError{Field: field, Message: details[field]})
		}
		return out
	}
	if e.Reason != "" {
		return []FieldError{{Field: e.Reason, Message: e.Message}}
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength > maxBodyBytes {
		return errBodyTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// badBody answers a request whose body could not be decoded.
func badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.Is(err, errBodyTooLarge) || errors.As(err, &tooLarge) {
		writeFail(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return
	}
	writeFail(w, http.StatusBadRequest, "Invalid request body", []FieldError{{Field: "body", Message: err.Error()}})
}

// pathID returns the {id} URL parameter, answering 400 and reporting false
// when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid ID format", nil)
		return "", false
	}
	return id, true
}

// pageParam reads ?page= and ?limit=. Missing or malformed values fall back
// to the defaults.
func pageParam(r *http.Request) model.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("limit"))
	return model.NewPage(number, size)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
}

// APIInfo handles GET /
func APIInfo(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, "Library Management System API is running!", map[string]any{
			"version":   version,
			"timestamp": time.Now().UTC(),
			"endpoints": map[string]string{
				"books":       "/api/books",
				"users":       "/api/users",
				"assignments": "/api/assignments",
			},
		})
	}
}

// NotFound answers requests for routes that do not exist.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeFail(w, http.StatusNotFound, "Route "+r.URL.RequestURI()+" not found", nil)
}

// MethodNotAllowed answers requests with a method the route does not serve.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeFail(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed on "+r.URL.Path, nil)
}
