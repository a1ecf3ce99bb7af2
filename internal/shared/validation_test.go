package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veresiye/defter/internal/platform/httpx"
)

type sampleInput struct {
	Name  string  `json:"name" validate:"required,max=5"`
	Phone string  `json:"phone" validate:"required,min=10"`
	Email *string `json:"email" validate:"omitempty,email"`
	Kind  string  `json:"kind" validate:"omitempty,oneof=A B"`
	Order int     `json:"order" validate:"gte=0"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	bad := "not-an-email"
	err := v.Struct(sampleInput{Name: "toolong", Phone: "123", Email: &bad, Kind: "C", Order: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	var fe *httpx.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Ensure this field has no more than 5 characters.", fe.Fields["name"])
	assert.Equal(t, "Ensure this field has at least 10 characters.", fe.Fields["phone"])
	assert.Equal(t, "Enter a valid email address.", fe.Fields["email"])
	assert.Equal(t, "Must be one of: A, B.", fe.Fields["kind"])
	assert.Contains(t, fe.Fields, "order")
}

func TestValidatorAcceptsValidInput(t *testing.T) {
	assert.NoError(t, NewValidator().Struct(sampleInput{Name: "Ali", Phone: "5551234567"}))
}

func TestTrimPtr(t *testing.T) {
	assert.Nil(t, TrimPtr(nil))
	blank := "   "
	assert.Nil(t, TrimPtr(&blank))
	padded := "  a@b.co "
	assert.Equal(t, "a@b.co", *TrimPtr(&padded))
}
