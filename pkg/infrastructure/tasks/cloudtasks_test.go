package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTaskID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already safe", "u1_6_DataUpload_20260827", "u1_6_DataUpload_20260827"},
		{"spaces and slashes", "user 1/update", "user-1-update"},
		{"colons", "notification:all", "notification-all"},
		{"non-ascii", "usér", "us-r"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeTaskID(tt.in))
		})
	}
}
