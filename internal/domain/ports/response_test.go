package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseAccessors(t *testing.T) {
	resp := Response{
		"Result":            "000",
		"ResultExplanation": "Transaction created",
		"TransToken":        "TOK-1",
		"TransRef":          "REF-1",
	}

	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "000", resp.ResultCode())
	assert.Equal(t, "Transaction created", resp.ResultExplanation())
	assert.Equal(t, "TOK-1", resp.Token())
	assert.Equal(t, "REF-1", resp.TransRef())
}

func TestResponseIsSuccessOnlyForTripleZero(t *testing.T) {
	for _, code := range []string{"001", "801", "900", "904", "999", ""} {
		assert.False(t, Response{"Result": code}.IsSuccess(), "code %q", code)
	}
	assert.True(t, Response{"Result": "000"}.IsSuccess())
}

func TestResponseIsApproved(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"Y", true},
		{"YES", true},
		{"0", false},
		{"N", false},
		{"NO", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Response{"TransactionApproval": tt.value}.IsApproved(), "value %q", tt.value)
	}

	// Absent flag never approves
	assert.False(t, Response{"Result": "000"}.IsApproved())
}
