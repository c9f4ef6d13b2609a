// Package response defines the JSON envelope every API endpoint answers
// with: {"statusCode": ..., "message": ..., "data": ...}.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Response is the uniform envelope of every API answer.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

// OK writes a success envelope with the given payload.
func OK(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	render.Status(r, status)
	render.JSON(w, r, Response{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Error writes an error envelope with no payload.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, Response{
		StatusCode: status,
		Message:    message,
	})
}

// Denied writes a 403 envelope carrying the lifecycle verdict, so clients
// can show an upgrade prompt.
func Denied(w http.ResponseWriter, r *http.Request, message string, verdict any) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, Response{
		StatusCode: http.StatusForbidden,
		Message:    message,
		Data:       verdict,
	})
}

// ValidationError turns validator errors into a readable 400 message.
func ValidationError(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	var msgs []string
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s is too short", err.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s is too long", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid uuid", err.Field()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}
	Error(w, r, http.StatusBadRequest, strings.Join(msgs, ", "))
}
