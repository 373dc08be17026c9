package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadErrorUnwrap(t *testing.T) {
	cause := New("connection refused")
	err := WrapLoad("nautobot", "prefixes", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "nautobot")
	assert.Contains(t, err.Error(), "prefixes")
}

func TestWrapHelpersPassNilThrough(t *testing.T) {
	assert.NoError(t, WrapLoad("x", "y", nil))
	assert.NoError(t, WrapRecord("create", "x", "y", nil))
	assert.NoError(t, WrapIO("read", "x", nil))
	assert.NoError(t, WrapAPI("x", 0, nil))
}

func TestAPIErrorStatusMapping(t *testing.T) {
	assert.True(t, IsNotFound(NewAPIError("nautobot", 404, "no such prefix")))
	assert.True(t, IsTargetUnavailable(NewAPIError("nautobot", 503, "maintenance")))
	assert.False(t, IsNotFound(NewAPIError("nautobot", 400, "bad request")))
}

func TestRecordErrorMessage(t *testing.T) {
	err := NewRecordError("update", "addresses", "10.0.0.1", New("boom"))
	assert.Contains(t, err.Error(), "update")
	assert.Contains(t, err.Error(), "10.0.0.1")
	assert.ErrorIs(t, err, err.Err)
}

func TestValidationErrorIsInvalidInput(t *testing.T) {
	err := NewValidationError("cidr", "10.0.0.0", "missing prefix length")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
