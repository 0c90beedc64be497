package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Run("Error message with value", func(t *testing.T) {
		err := NewConfigError("JoinDepth", -1, "join depth cannot be negative")
		assert.Equal(t, `kvgen: config error for "JoinDepth" (value: -1): join depth cannot be negative`, err.Error())
	})

	t.Run("Error message without value", func(t *testing.T) {
		err := NewConfigError("Target", nil, "missing")
		assert.Equal(t, `kvgen: config error for "Target": missing`, err.Error())
	})

	t.Run("Is matches ErrInvalidConfig", func(t *testing.T) {
		err := NewConfigError("Target", nil, "missing")
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.False(t, errors.Is(errors.New("other"), ErrInvalidConfig))
	})

	t.Run("IsConfigError helper", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NewConfigError("Target", nil, "missing"))
		assert.True(t, IsConfigError(err))
		assert.False(t, IsConfigError(errors.New("other")))
	})
}
