package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "KA01AB1234", "ka01ab1234"},
		{"strips spaces", "KA 01 AB 1234", "ka01ab1234"},
		{"strips tabs and newlines", "ka\t01\nab", "ka01ab"},
		{"already normalized", "ka01ab1234", "ka01ab1234"},
		{"whitespace only", "   \t ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePlate(tt.input))
		})
	}
}

func TestNormalizePlateIdempotent(t *testing.T) {
	inputs := []string{"KA 01 AB 1234", "White Sedan 99", "  x Y z  ", "ab12cd"}
	for _, in := range inputs {
		once := NormalizePlate(in)
		assert.Equal(t, once, NormalizePlate(once))
	}
}
