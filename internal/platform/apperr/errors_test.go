package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Conflict("animal already reserved", map[string]string{"animal_id": "a-1"})

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("approve: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestInvalidTransition_NamesStateAndAction(t *testing.T) {
	err := InvalidTransition("rejected", "approve")

	assert.Equal(t, "cannot approve from state rejected", err.Error())
	assert.Equal(t, "rejected", err.Metadata["current_state"])
	assert.Equal(t, "approve", err.Metadata["action"])
}

func TestInconsistent_KeepsCause(t *testing.T) {
	cause := errors.New("0 rows affected")
	err := Inconsistent("adoption partially applied", cause)

	assert.True(t, errors.Is(err, ErrInconsistentState))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "0 rows affected")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("reason", "reason is required"): http.StatusBadRequest,
		NotFound("animal", "a-1"):                  http.StatusNotFound,
		InvalidTransition("completed", "cancel"):   http.StatusConflict,
		CapacityExceeded("act-1", 2):               http.StatusConflict,
		AlreadyEnrolled("act-1", "vol-1"):          http.StatusConflict,
		ErrForbidden:                               http.StatusForbidden,
		Inconsistent("boom", nil):                  http.StatusInternalServerError,
		errors.New("plain"):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
