package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"animal-shelter/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectBody struct {
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"internal_notes"`
}

func TestDecode_ValidationUsesJSONFieldName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"internal_notes":"x"}`))

	var body rejectBody
	err := Decode(r, &body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "reason", e.Metadata["field"])
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":1}`))

	var body rejectBody
	err := Decode(r, &body)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.InvalidTransition("completed", "cancel"))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var got ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, apperr.CodeInvalidTransition, got.Code)
	assert.Equal(t, "completed", got.Metadata["current_state"])

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
