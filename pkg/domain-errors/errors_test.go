package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeConflict, "DID already registered")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("register: %w", New(CodeForbidden, "Not an admin"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(cause, CodeInternal, "failed to save report")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save report: disk on fire", err.Error())
	assert.Equal(t, "failed to save report", MessageOf(err))
}
