package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPasswordPolicy(t *testing.T) {
	p := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		code     string
	}{
		{"valid", "Abcdef1", ""},
		{"too short", "Ab1", "min_length"},
		{"short in runes", "Áb1çã", "min_length"},
		{"no upper", "abcdef1", "uppercase"},
		{"no lower", "ABCDEF1", "lowercase"},
		{"no digit", "Abcdefg", "digit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.password)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}

			var pe *PolicyError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, "password", pe.Field)

			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestMaskQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nome do primeiro animal?", "Nome ************ animal?"},
		{"Qual o nome da sua primeira escola?", "Qual ******************** escola?"},
		{"Cidade natal", "Cid******tal"},
		{"abcdefghij", "abc****hij"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskQuestion(tt.in), tt.in)
	}
}
