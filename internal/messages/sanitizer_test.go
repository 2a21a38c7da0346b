package messages_test

import (
	"strings"
	"testing"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/messages"

	"github.com/stretchr/testify/assert"
)

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain text", "Meet at the station at 8?", false},
		{"text mentioning one equals", "one = two, right?", false},
		{"angle brackets in prose", "3 < 5 and 7 > 2", false},
		{"blank", "   \n\t ", true},
		{"script tag", "hi <script>alert(1)</script>", true},
		{"script tag with spaces", "< SCRIPT src=x>", true},
		{"inline handler", `<img src=x onerror="steal()">`, true},
		{"javascript url", "click javascript:alert(1)", true},
		{"iframe", "<iframe src=//evil>", true},
		{"embed", "<EMBED src=x>", true},
		{"object", "<object data=x>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := messages.ValidateContent(tt.content, 100)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContent_LengthInRunes(t *testing.T) {
	ok := strings.Repeat("ї", 10)
	got, err := messages.ValidateContent("  "+ok+"  ", 10)
	assert.NoError(t, err)
	assert.Equal(t, ok, got)

	_, err = messages.ValidateContent(ok+"ї", 10)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}
