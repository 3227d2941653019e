package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codeBlockPattern        = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern       = regexp.MustCompile("`[^`\n]+`")
	headerPattern           = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*$`)
	unorderedListPattern    = regexp.MustCompile(`(?m)^([ \t]*)[-*][ \t]+(.+)$`)
	multipleNewlinesPattern = regexp.MustCompile(`\n{3,}`)
)

// FormatMarkdown adapts model output to what Discord renders.
//
// Headers become bold lines and "-"/"*" list markers become "•". Code blocks
// and inline code are left untouched.
//
//	Input:  "## Steps\n- one\n- two"
//	Output: "**Steps**\n• one\n• two"
func FormatMarkdown(content string) string {
	return protectCode(content, func(text string) string {
		text = headerPattern.ReplaceAllString(text, "**$1**")
		text = unorderedListPattern.ReplaceAllString(text, "$1• $2")
		text = cleanWhitespace(text)
		return multipleNewlinesPattern.ReplaceAllString(text, "\n\n")
	})
}

// protectCode swaps code spans for placeholders while processor runs
func protectCode(content string, processor func(string) string) string {
	var protected []string
	stash := func(match string) string {
		protected = append(protected, match)
		return fmt.Sprintf("\x00CODE%d\x00", len(protected)-1)
	}

	content = codeBlockPattern.ReplaceAllStringFunc(content, stash)
	content = inlineCodePattern.ReplaceAllStringFunc(content, stash)

	content = processor(content)

	for i := len(protected) - 1; i >= 0; i-- {
		content = strings.Replace(content, fmt.Sprintf("\x00CODE%d\x00", i), protected[i], 1)
	}
	return content
}

// cleanWhitespace trims trailing spaces from each line, keeping indentation
func cleanWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// FormatCodeBlock wraps code in a fence with an optional language tag
func FormatCodeBlock(code, language string) string {
	return fmt.Sprintf("```%s\n%s\n```", language, strings.TrimRight(code, "\n"))
}
