package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Priya8975/newsletter-service/internal/newsletter"
	"github.com/Priya8975/newsletter-service/internal/worker"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	Resubscribe bool   `json:"resubscribe,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// decodeAndValidate reads a JSON body into v and checks its validate tags.
// Errors come back as *newsletter.ValidationError.
func decodeAndValidate(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &newsletter.ValidationError{Field: "body", Message: "invalid request body"}
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &newsletter.ValidationError{Field: verrs[0].Field(), Message: tagMessage(verrs[0])}
		}
		return &newsletter.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *newsletter.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, newsletter.ErrTokenNotFound), errors.Is(err, newsletter.ErrArticleNotFound):
		return http.StatusNotFound
	case errors.Is(err, newsletter.ErrTokenExpired):
		return http.StatusGone
	case errors.Is(err, newsletter.ErrArticleNotPublished), errors.Is(err, worker.ErrBroadcastInProgress):
		return http.StatusConflict
	case errors.Is(err, newsletter.ErrProvider), errors.Is(err, newsletter.ErrEmailDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err for the admin API. Internal errors are
// not echoed to the client.
func respondServiceError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	resp := errorResponse{Error: err.Error()}
	var verr *newsletter.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	respondJSON(w, status, resp)
}

func queryLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
