package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devcircle/devcircle-server/internal/apperrors"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.ErrUserNotFound, http.StatusNotFound},
		{apperrors.ErrRequestNotFound, http.StatusNotFound},
		{apperrors.ErrRequestNotOpen, http.StatusConflict},
		{apperrors.ErrRequestNotInProgress, http.StatusConflict},
		{apperrors.ErrRequestCompleted, http.StatusConflict},
		{apperrors.ErrSelfAccept, http.StatusForbidden},
		{apperrors.ErrNotRequesterComplete, http.StatusForbidden},
		{apperrors.ErrInsufficientBalance, http.StatusBadRequest},
		{apperrors.Validation("bad field"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, apperrors.HTTPStatus(tc.err), "error: %v", tc.err)
	}
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	wrapped := fmt.Errorf("completing request: %w", apperrors.ErrRequestNotInProgress)

	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(wrapped))
	assert.Equal(t, "REQUEST_NOT_IN_PROGRESS", apperrors.Code(wrapped))
	assert.True(t, errors.Is(wrapped, apperrors.ErrRequestNotInProgress))
	assert.False(t, errors.Is(wrapped, apperrors.ErrRequestNotOpen))
}

func TestCodeForUntypedError(t *testing.T) {
	assert.Equal(t, "INTERNAL_ERROR", apperrors.Code(errors.New("boom")))
	assert.Equal(t, apperrors.KindUnknown, apperrors.KindOf(errors.New("boom")))
}
