package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "headers become bold",
			input: "# Title\n## Steps ##\ntext",
			want:  "**Title**\n**Steps**\ntext",
		},
		{
			name:  "list markers",
			input: "- one\n* two\n  - nested",
			want:  "• one\n• two\n  • nested",
		},
		{
			name:  "code blocks untouched",
			input: "```md\n# not a header\n- not a list\n```",
			want:  "```md\n# not a header\n- not a list\n```",
		},
		{
			name:  "inline code untouched",
			input: "run `- x` now",
			want:  "run `- x` now",
		},
		{
			name:  "collapses blank lines and trailing spaces",
			input: "a  \n\n\n\nb",
			want:  "a\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMarkdown(tt.input))
		})
	}
}

func TestFormatCodeBlock(t *testing.T) {
	assert.Equal(t, "```go\nx := 1\n```", FormatCodeBlock("x := 1\n", "go"))
	assert.Equal(t, "```\nplain\n```", FormatCodeBlock("plain", ""))
}
