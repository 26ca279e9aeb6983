package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionError_IsAndKind(t *testing.T) {
	xe := NewExtractionError(KindMalformedJSON, "parse failed", errors.New("unexpected end"))
	xe.Batch = 3
	wrapped := fmt.Errorf("batch run: %w", xe)

	assert.True(t, errors.Is(wrapped, ErrMalformedJSON))
	assert.False(t, errors.Is(wrapped, ErrNoJSONFound))
	assert.Equal(t, KindMalformedJSON, KindOf(wrapped))
	assert.Contains(t, xe.Error(), "batch 3: MalformedJson")
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("name", " ", Required).
		Field("threshold", 120, IntRange(0, 100)).
		Field("type", "TEXT", OneOf("TEXT", "NUMBER"))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.True(t, errors.Is(v.Error(), ErrValidation))

	err := ValidateAndReturnError(v)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
