package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		scheme  string
		value   string
		wantErr bool
	}{
		{"belgian vat", "0208", "1234567890123", false},
		{"generic scheme", "9925", "111", false},
		{"single digit value", "0088", "1", false},
		{"max length value", "0088", "12345678901234567890", false},
		{"alpha scheme", "abcd", "123", true},
		{"short scheme", "208", "123", true},
		{"long scheme", "02081", "123", true},
		{"empty value", "0208", "", true},
		{"value too long", "0088", "123456789012345678901", true},
		{"alpha value", "0208", "12a4", true},
		{"value with separator", "0208", "123:456", true},
		{"empty identifier", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(Identifier{Scheme: tc.scheme, Value: tc.value})
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	id, err := Parse("0208:1234567890123")
	assert.NoError(t, err)
	assert.Equal(t, Identifier{Scheme: "0208", Value: "1234567890123"}, id)
	assert.Equal(t, "0208:1234567890123", id.String())

	_, err = Parse("0208")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse("abcd:123")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
