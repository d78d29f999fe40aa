package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	driverErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"validation", ErrEmptyContent, CodeValidation},
		{"authorization", ErrNotMatched, CodeAuthorization},
		{"identity", ErrInvalidToken, CodeIdentity},
		{"not found", NotFound("user not found"), CodeNotFound},
		{"persistence", Persistence("failed to store message", driverErr), CodePersistence},
		{"wrapped app error", fmt.Errorf("send: %w", ErrSelfMessage), CodeValidation},
		{"plain error", driverErr, CodePersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestPersistenceUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("failed to mark conversation read", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to mark conversation read: connection reset", err.Error())
	assert.Equal(t, "failed to mark conversation read", PublicMessage(err))
}

func TestPublicMessageHidesUnknownErrors(t *testing.T) {
	assert.Equal(t, "internal error", PublicMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "profiles are not matched", PublicMessage(ErrNotMatched))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrContentTooLong))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrNotMatched))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrProfileMismatch))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("missing")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(ErrNotJoined, CodeIdentity))
	assert.False(t, Is(ErrNotJoined, CodeValidation))
	assert.False(t, Is(nil, CodePersistence))
}
