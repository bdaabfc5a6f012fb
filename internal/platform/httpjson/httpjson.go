// Package httpjson agrupa los helpers JSON que antes estaban duplicados en cada handler.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"animal-shelter/internal/platform/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Reportar el nombre JSON del campo, no el del struct.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody es el cuerpo de toda respuesta de error.
type ErrorBody struct {
	Code     apperr.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Decode lee el body (sin campos desconocidos) y valida los tags `validate`.
// Cualquier problema de forma se devuelve como apperr VALIDATION.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid json", err)
	}
	return Validate(dst)
}

func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return apperr.Wrap(apperr.CodeValidation, "invalid input", err)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError responde {code, message, metadata}. Errores sin código no filtran detalles.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)

	var e *apperr.Error
	if !errors.As(err, &e) {
		WriteJSON(w, status, ErrorBody{Code: apperr.CodeUnknown, Message: "internal error"})
		return
	}

	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
	}
	WriteJSON(w, status, ErrorBody{Code: e.Code, Message: msg, Metadata: e.Metadata})
}
