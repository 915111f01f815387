package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    *ServiceError
		code   Code
		status int
	}{
		{"unauthorized", Unauthorized(""), CodeAuthentication, http.StatusUnauthorized},
		{"not found", NotFound("Tweet not found"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad"), CodeValidation, http.StatusBadRequest},
		{"too large", TooLarge("big"), CodeValidation, http.StatusRequestEntityTooLarge},
		{"follow conflict", Conflict(CodeFollowExists, "dup"), CodeFollowExists, http.StatusConflict},
		{"rate limited", RateLimitExceeded(5, "1s"), CodeRateLimited, http.StatusTooManyRequests},
		{"internal", Internal("boom", stderrors.New("x")), CodeServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
	assert.Equal(t, "Invalid API key", Unauthorized("").Message)
}

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("like tweet: %w", NotFound("Tweet not found"))

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeNotFound, se.Code)
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.True(t, stderrors.Is(wrapped, NotFound("")))
	assert.False(t, stderrors.Is(wrapped, Validation("")))

	assert.Nil(t, GetServiceError(stderrors.New("plain")))
	assert.Nil(t, GetServiceError(nil))
}

func TestInternalUnwraps(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Internal("query failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
