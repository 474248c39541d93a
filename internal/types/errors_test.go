package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationBodyTooLarge, http.StatusBadRequest},
		{ErrCodeAuthSignatureInvalid, http.StatusUnauthorized},
		{ErrCodeAuthSignatureMissing, http.StatusUnauthorized},
		{ErrCodeUpstreamTelegram, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			err := NewAppError(tc.code, "msg", nil)
			assert.Equal(t, tc.want, err.HTTPStatus())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := NewAppError(ErrCodeInternalUnexpected, "wrapper", inner)

	assert.ErrorIs(t, err, inner)

	var appErr *AppError
	assert.True(t, errors.As(error(err), &appErr))
	assert.Equal(t, ErrCodeInternalUnexpected, appErr.Code)
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewAppError(ErrCodeUpstreamTelegram, "delivery failed", errors.New("EOF"))
	assert.Contains(t, err.Error(), "delivery failed")
}
