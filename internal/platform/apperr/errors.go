// Package apperr define la taxonomía de errores del dominio del refugio.
//
// Todos los errores de negocio son *Error con un Code estable; los handlers
// deciden el status HTTP a partir del Code y nunca a partir del mensaje.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code es un código de error legible por máquina.
type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConflict          Code = "CONFLICT"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeAlreadyEnrolled   Code = "ALREADY_ENROLLED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInconsistentState Code = "INCONSISTENT_STATE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeUnknown           Code = "UNKNOWN"
)

// Sentinels para errors.Is: comparan solo por Code.
var (
	ErrValidation        = &Error{Code: CodeValidation}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrCapacityExceeded  = &Error{Code: CodeCapacityExceeded}
	ErrAlreadyEnrolled   = &Error{Code: CodeAlreadyEnrolled}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrInconsistentState = &Error{Code: CodeInconsistentState}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrForbidden         = &Error{Code: CodeForbidden}
)

// Error es el error de dominio con metadata estructurada.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is compara por Code, así errors.Is(err, ErrConflict) funciona con cualquier conflicto.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation indica un campo faltante o mal formado (corregible por el caller).
func Validation(field, message string) *Error {
	return WithMetadata(CodeValidation, message, map[string]string{"field": field})
}

// InvalidTransition nombra el estado actual y la acción intentada.
func InvalidTransition(current, action string) *Error {
	return WithMetadata(
		CodeInvalidTransition,
		fmt.Sprintf("cannot %s from state %s", action, current),
		map[string]string{"current_state": current, "action": action},
	)
}

func Conflict(message string, metadata map[string]string) *Error {
	return WithMetadata(CodeConflict, message, metadata)
}

func NotFound(entity, id string) *Error {
	return WithMetadata(
		CodeNotFound,
		entity+" not found",
		map[string]string{"entity": entity, "id": id},
	)
}

func CapacityExceeded(activityID string, required int) *Error {
	return WithMetadata(
		CodeCapacityExceeded,
		"activity is full",
		map[string]string{"activity_id": activityID, "required_volunteers": fmt.Sprint(required)},
	)
}

func AlreadyEnrolled(activityID, volunteerID string) *Error {
	return WithMetadata(
		CodeAlreadyEnrolled,
		"volunteer already enrolled",
		map[string]string{"activity_id": activityID, "volunteer_id": volunteerID},
	)
}

// Inconsistent se usa cuando una operación multi-entidad detecta aplicación parcial.
func Inconsistent(message string, cause error) *Error {
	return Wrap(CodeInconsistentState, message, cause)
}

// CodeOf devuelve el Code del primer *Error de la cadena, o CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HTTPStatus traduce el Code a status HTTP.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeConflict, CodeCapacityExceeded, CodeAlreadyEnrolled:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
