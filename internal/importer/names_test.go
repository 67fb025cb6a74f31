package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveName(t *testing.T) {
	tests := []struct {
		name      string
		extracted string
		fromCSV   string
		want      string
		found     bool
	}{
		{name: "extracted wins", extracted: " Jane ", fromCSV: "Other", want: "Jane", found: true},
		{name: "blank extracted falls back", extracted: "   ", fromCSV: " Other ", want: "Other", found: true},
		{name: "only csv", fromCSV: "Other", want: "Other", found: true},
		{name: "nothing", extracted: "", fromCSV: "  ", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveName(tt.extracted, tt.fromCSV)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"jane doe", "Jane Doe"},
		{"JANE DOE", "Jane Doe"},
		{"maria da silva", "Maria da Silva"},
		{"da silva", "Da Silva"},
		{"ana de", "Ana De"},
		{"jo", "Jo"},
		{"jane d", "Jane D"},
		{"o'neil mc do ré", "O'neil mc do Ré"},
		{"élodie durand", "Élodie Durand"},
		{"a  b", "A  B"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Capitalize(tt.input))
		})
	}
}

func TestCapitalize_Idempotent(t *testing.T) {
	inputs := []string{
		"jane doe", "MARIA DA SILVA", "x", "de la cruz", "ÉLODIE", "van der berg jr",
		"a  b", "straße", "o'neil",
	}
	for _, in := range inputs {
		once := Capitalize(in)
		assert.Equal(t, once, Capitalize(once), "input %q", in)
	}
}
