package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not found", NotFound("appointment", nil), ErrNotFound},
		{"validation", Validation("weekday out of range", nil), ErrValidation},
		{"slot unavailable", SlotUnavailable(nil), ErrSlotUnavailable},
		{"invalid transition", InvalidTransition("paid", "requested"), ErrInvalidTransition},
		{"signature", Signature(stderrors.New("bad hmac")), ErrSignature},
		{"untyped errors default to internal", stderrors.New("boom"), ErrInternal},
		{"nil defaults to internal", nil, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("handling webhook: %w", SlotUnavailable(nil))
	assert.Equal(t, ErrSlotUnavailable, CodeOf(err))
	assert.True(t, Is(err, ErrSlotUnavailable))
	assert.False(t, Is(err, ErrNotFound))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("sql: no rows in result set")
	err := NotFound("slot", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "slot not found")
	assert.Contains(t, err.Error(), cause.Error())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "unauthorized", Unauthorized("", nil).Error())
	assert.Equal(t, "forbidden", Forbidden("", nil).Error())
	assert.Equal(t, "doctors only", Forbidden("doctors only", nil).Error())
	assert.Equal(t,
		"invalid status transition from complete to requested",
		InvalidTransition("complete", "requested").Error(),
	)
}
