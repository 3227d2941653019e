package chunker

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogbot/backend/internal/constants"
	apperrors "cogbot/backend/pkg/errors"
)

func TestSplit_InvalidLimit(t *testing.T) {
	for _, limit := range []int{0, -1, -1950} {
		_, err := Split("hello", limit)
		require.Error(t, err)

		var argErr *apperrors.ErrInvalidArgument
		assert.True(t, errors.As(err, &argErr))
		assert.Equal(t, "limit", argErr.Argument)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidArgument))
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t "} {
		chunks, err := Split(text, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestSplit_HardCut(t *testing.T) {
	chunks, err := Split(strings.Repeat("a", 3000), constants.DefaultChunkLimit)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 1950)
	assert.Len(t, chunks[1], 1050)
}

func TestSplit_FitsInOneChunk(t *testing.T) {
	chunks, err := Split("  short message \n", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"short message"}, chunks)
}

func TestSplit_BoundaryPriority(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{
			name:  "blank line before sentence",
			text:  "Para one. Still one\n\nPara two",
			limit: 25,
			want:  []string{"Para one. Still one", "Para two"},
		},
		{
			name:  "sentence before whitespace",
			text:  "First sentence. Second sentence here",
			limit: 20,
			want:  []string{"First sentence.", "Second sentence here"},
		},
		{
			name:  "whitespace before hard cut",
			text:  "alpha beta gamma",
			limit: 12,
			want:  []string{"alpha beta", "gamma"},
		},
		{
			name:  "sentence end at the very start is a valid boundary",
			text:  ". abcdef",
			limit: 3,
			want:  []string{".", "abc", "def"},
		},
		{
			name:  "multibyte characters count once",
			text:  "äöüäöü ßßß",
			limit: 6,
			want:  []string{"äöüäöü", "ßßß"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, chunks)
		})
	}
}

func TestSplit_FenceReopenedAfterSoftCut(t *testing.T) {
	chunks, err := Split("```\ncode line\n``` trailing text", 12)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"```\ncode\n```",
		"```\nline\n```",
		"trailing",
		"text",
	}, chunks)
}

func TestSplit_FenceHardCut(t *testing.T) {
	text := "```\n" + strings.Repeat("x", 40) + "\n```"

	chunks, err := Split(text, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "```\n"+strings.Repeat("x", 12)+"\n```", chunks[0])
	assert.True(t, strings.HasSuffix(chunks[0], "\n```"))
	assert.True(t, strings.HasPrefix(chunks[1], "```\n"))
	assert.Equal(t, "```\nxxxx\n```", chunks[3])

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 20)
		total += strings.Count(c, "x")
	}
	assert.Equal(t, 40, total)
}

func TestSplit_KeepsLanguageTag(t *testing.T) {
	text := "Here is the code:\n\n```go\n" + strings.Repeat("x := 1\n", 30) + "```\nDone."

	chunks, err := Split(text, 60)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 60, "chunk %d", i)
		assert.Equal(t, 0, fenceLines(c)%2, "chunk %d has unbalanced fences: %q", i, c)
	}
	for _, c := range chunks[1 : len(chunks)-1] {
		assert.True(t, strings.HasPrefix(c, "```go\n"), "continuation should reopen with the tag: %q", c)
	}
	assert.Equal(t, "Here is the code:", chunks[0])
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "Done."))
}

func TestSplit_ClosesUnterminatedFence(t *testing.T) {
	chunks, err := Split("```python\nprint('hi')", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"```python\nprint('hi')\n```"}, chunks)
}

func TestSplit_TinyLimitStillProgresses(t *testing.T) {
	chunks, err := Split("```javascript\nconsole.log(1)\n```", 4)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 4)
		assert.NotEmpty(t, c)
	}
}

func TestSplit_KeepsIndentationInsideFence(t *testing.T) {
	art := "    art\n"
	chunks, err := Split("```\n"+art+art+art+"```", 20)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"```\n    art\n```",
		"```\n    art\n```",
		"```\n    art\n```",
	}, chunks)
}

func TestSplit_TightLimitNeverEmitsEmptyBlock(t *testing.T) {
	text := "```\ncode line\n``` trailing text"

	chunks, err := Split(text, 8)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "```\ncode", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 8)
		assert.NotEqual(t, "```\n```", c)
		assert.NotEqual(t, "```", strings.TrimSpace(c), "chunk holds only a fence line")
	}
	assert.Equal(t, stripSpace(text), stripSpace(strings.Join(chunks, "")))
}

func TestSplit_MidLineBackticksNeverStartAChunk(t *testing.T) {
	chunks, err := Split("foo ```bar baz qux", 6)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo ``", "`bar", "baz", "qux"}, chunks)
	for _, c := range chunks {
		assert.Equal(t, 0, fenceLines(c)%2, "chunk %q reads as a fence", c)
	}
}

func TestSplit_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"lorem", "ipsum.", "dolor", "sit", "amet,", "x", "consectetur", "\n", "\n\n", "supercalifragilistic"}

	for run := 0; run < 200; run++ {
		var b strings.Builder
		n := rng.Intn(300)
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		text := b.String()
		limit := 1 + rng.Intn(80)

		chunks, err := Split(text, limit)
		require.NoError(t, err)

		for _, c := range chunks {
			require.LessOrEqual(t, runeLen(c), limit)
			require.NotEmpty(t, c)
		}
		require.Equal(t, stripSpace(text), stripSpace(strings.Join(chunks, "")),
			"run %d limit %d", run, limit)
	}
}

func TestSplit_PropertiesWithFences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	lines := []string{"```", "```sql", "select 1;", "plain text here.", "", "  indented line", "a b c d e f g"}

	for run := 0; run < 200; run++ {
		var b strings.Builder
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			b.WriteString(lines[rng.Intn(len(lines))])
			b.WriteByte('\n')
		}
		text := b.String()
		limit := 24 + rng.Intn(100)

		chunks, err := Split(text, limit)
		require.NoError(t, err)

		for i, c := range chunks {
			require.LessOrEqual(t, runeLen(c), limit)
			require.Equal(t, 0, fenceLines(c)%2, "run %d chunk %d: %q", run, i, c)
		}
		require.Equal(t, stripSpace(stripFences(text)), stripSpace(stripFences(strings.Join(chunks, ""))))
	}
}

func TestChunks_IsLazy(t *testing.T) {
	seq, err := Chunks(strings.Repeat("word ", 1000), 10)
	require.NoError(t, err)

	var got []string
	for c := range seq {
		got = append(got, c)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"word word", "word word", "word word"}, got)
}

func fenceLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), fenceMarker) {
			n++
		}
	}
	return n
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	return strings.ReplaceAll(s, "```", "")
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
