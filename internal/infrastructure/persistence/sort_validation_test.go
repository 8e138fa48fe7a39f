package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns ASC", "", "ASC"},
		{"ASC uppercase returns ASC", "ASC", "ASC"},
		{"desc lowercase returns DESC", "desc", "DESC"},
		{"DESC uppercase returns DESC", "DESC", "DESC"},
		{"invalid value returns ASC", "INVALID", "ASC"},
		{"sql injection attempt returns ASC", "DESC; DROP TABLE obligations;--", "ASC"},
		{"whitespace around desc returns DESC", "  desc  ", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns default", "", "due_date"},
		{"valid field returns field", "expected_amount", "expected_amount"},
		{"invalid field returns default", "cancel_reason", "due_date"},
		{"sql injection attempt returns default", "id; DROP TABLE obligations;--", "due_date"},
		{"case sensitive", "STATUS", "due_date"},
		{"whitespace around valid field returns field", "  sequence  ", "sequence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, ObligationSortFields, "due_date"))
		})
	}
}
