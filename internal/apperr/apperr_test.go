package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NotFound("channel", 5), http.StatusNotFound},
		{Conflict("community name %q already taken", "Test"), http.StatusConflict},
		{Forbidden("missing capability %s", "MANAGE_ROLES"), http.StatusForbidden},
		{Expired("invitation is expired"), http.StatusGone},
		{Invalid("message must have content or attachments"), http.StatusBadRequest},
		{Unauthenticated("invalid token"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("send message: %w", NotFound("message", 9))

	require.True(t, Is(err, KindNotFound))
	assert.Equal(t, "message 9 not found", PublicMessage(err))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Wrap(KindInternal, "insert message", errors.New("pq: connection refused"))

	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Equal(t, "internal error", PublicMessage(errors.New("raw")))
	assert.ErrorContains(t, err, "connection refused")
}
