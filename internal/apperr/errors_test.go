package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyPredicates(t *testing.T) {
	assert.True(t, IsValidation(Validation("empty content")))
	assert.True(t, IsPermission(Permission("not a participant")))
	assert.True(t, IsUpload(Upload(errors.New("connection reset"))))

	assert.False(t, IsValidation(Permission("nope")))
	assert.False(t, IsPermission(Validation("nope")))
	assert.False(t, IsUpload(errors.New("plain")))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", Permission("not the sender"))
	assert.True(t, IsPermission(wrapped))

	wrapped = fmt.Errorf("storing blob: %w", Upload(errors.New("timeout")))
	assert.True(t, IsUpload(wrapped))
}

func TestUploadUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upload(cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestInvariantCarriesDetail(t *testing.T) {
	err := Invariant("status %s -> %s", "read", "delivered")

	var violation *InvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "status read -> delivered", violation.Detail)
	assert.Equal(t, "invariant violation: status read -> delivered", err.Error())
}
