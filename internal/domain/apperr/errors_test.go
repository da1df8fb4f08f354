package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageKeepsBothKinds(t *testing.T) {
	cause := errors.New("conn reset")
	err := Storage("subscriptions.get", cause)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "subscriptions.get")
	assert.NoError(t, Storage("noop", nil))
}

func TestInvalid(t *testing.T) {
	err := Invalid("unknown reason %q", "spam")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, `invalid input: unknown reason "spam"`, err.Error())
}
