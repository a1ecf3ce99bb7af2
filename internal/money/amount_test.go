package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veresiye/defter/internal/platform/httpx"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "100.00"},
		{"100.5", "100.50"},
		{" 0.01 ", "0.01"},
		{"-3.25", "-3.25"},
		{"1.500", "1.50"},
	}
	for _, tc := range cases {
		a, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, a.String())
	}
}

func TestParseRejectsExtraPrecision(t *testing.T) {
	_, err := Parse("1.005")
	require.ErrorIs(t, err, ErrPrecision)
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1,50", "1.2.3"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestParsePositive(t *testing.T) {
	_, err := ParsePositive("0.00")
	assert.ErrorIs(t, err, ErrNotPositive)

	_, err = ParsePositive("-5")
	assert.ErrorIs(t, err, ErrNotPositive)

	a, err := ParsePositive("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Minor())
}

func TestSumAvoidsFloatDrift(t *testing.T) {
	var parts []Amount
	for i := 0; i < 10; i++ {
		parts = append(parts, MustParse("0.10"))
	}
	assert.Equal(t, "1.00", Sum(parts...).String())
	assert.True(t, Sum().IsZero())
	assert.Equal(t, "0.00", Sum().String())
}

func TestFromMinorAndCmp(t *testing.T) {
	a := FromMinor(12345)
	assert.Equal(t, "123.45", a.String())
	assert.Equal(t, int64(12345), a.Minor())
	assert.Equal(t, 1, a.Cmp(MustParse("100")))
	assert.Equal(t, -1, MustParse("100").Cmp(a))
	assert.True(t, a.Equal(MustParse("123.450")))
}

func TestJSONRoundTripKeepsText(t *testing.T) {
	var payload struct {
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 19.99}`), &payload))
	assert.Equal(t, "19.99", payload.Amount.String())

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "250"}`), &payload))
	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"250.00"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"amount": "1.999"}`), &payload))
}

func TestScanAndValue(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("42.10"))
	assert.Equal(t, "42.10", a.String())

	require.NoError(t, a.Scan([]byte("7")))
	assert.Equal(t, "7.00", a.String())

	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())

	assert.Error(t, a.Scan(3.14))

	v, err := MustParse("5.5").Value()
	require.NoError(t, err)
	assert.Equal(t, "5.50", v)
}
