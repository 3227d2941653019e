// Package chunker splits long text into message-sized chunks without breaking
// fenced code blocks.
//
// Lengths are counted in characters (runes), which is how Discord counts its
// message limit. A chunk boundary prefers, in order: a blank line, the end of a
// sentence, any whitespace, and finally a hard cut. Whitespace at a boundary is
// dropped, except the indentation of a line inside a fence. When a boundary falls inside a ``` fence the chunk is closed with a
// fence line and the next chunk re-opens it with the original opening line
// (including its language tag), so every chunk renders on its own.
package chunker

import (
	"iter"
	"slices"
	"sort"
	"strings"
	"unicode"

	apperrors "cogbot/backend/pkg/errors"
)

const fenceMarker = "```"

// Chunks returns a lazy sequence of chunks of text, each at most limit characters.
// Empty or whitespace-only text yields an empty sequence. A non-positive limit
// returns *errors.ErrInvalidArgument.
func Chunks(text string, limit int) (iter.Seq[string], error) {
	if limit <= 0 {
		return nil, apperrors.NewInvalidArgument("limit", limit, "must be positive")
	}

	return func(yield func(string) bool) {
		s := newSplitter(text, limit)
		for {
			chunk, ok := s.next()
			if !ok || !yield(chunk) {
				return
			}
		}
	}, nil
}

// Split is Chunks collected into a slice. It returns nil for empty input.
func Split(text string, limit int) ([]string, error) {
	seq, err := Chunks(text, limit)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// fenceToggle is a line that opens or closes a fence.
type fenceToggle struct {
	at     int    // offset of the first backtick
	opener string // e.g. "```go"; empty for closing lines
}

type splitter struct {
	text    []rune
	pos     int
	end     int
	limit   int
	toggles []fenceToggle
}

func newSplitter(text string, limit int) *splitter {
	r := []rune(text)
	s := &splitter{text: r, end: len(r), limit: limit}
	for s.end > 0 && unicode.IsSpace(r[s.end-1]) {
		s.end--
	}
	s.pos = s.skipSpace(0)
	s.toggles = scanFences(r[:s.end])
	return s
}

// scanFences records every line whose left-trimmed form starts with ```.
// Toggles alternate opener, closer, opener, ...
func scanFences(text []rune) []fenceToggle {
	var toggles []fenceToggle
	open := false
	lineStart := 0

	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != '\n' {
			continue
		}

		indent := lineStart
		for indent < i && unicode.IsSpace(text[indent]) {
			indent++
		}
		line := string(text[indent:i])
		if strings.HasPrefix(line, fenceMarker) {
			t := fenceToggle{at: indent}
			if !open {
				t.opener = strings.Fields(line)[0]
			}
			toggles = append(toggles, t)
			open = !open
		}
		lineStart = i + 1
	}

	return toggles
}

func (s *splitter) next() (string, bool) {
	if s.pos >= s.end {
		return "", false
	}

	prefix := s.openerAt(s.pos)
	if prefix != "" {
		prefix += "\n"
	}

	cut, closer, ok := s.fit(s.limit - runeLen(prefix))
	if !ok {
		// The limit cannot carry fence markers; fall back to a plain cut.
		prefix, closer = "", ""
		cut, _ = s.cutWithin(s.limit)
	}

	body := strings.TrimRightFunc(string(s.text[s.pos:cut]), unicode.IsSpace)
	if body == "" {
		// Only kept indentation fit; drop it and cut again.
		s.pos = s.skipSpace(s.pos)
		return s.next()
	}
	s.pos = s.resume(cut)

	return prefix + body + closer, true
}

// fit picks a cut whose body plus any closing fence stays within budget.
// The first attempt uses the whole budget; if the cut lands inside a fence and
// the closer does not fit, the window shrinks by the closer's length.
func (s *splitter) fit(budget int) (cut int, closer string, ok bool) {
	window := budget
	for attempt := 0; attempt < 2; attempt++ {
		if window <= 0 {
			return 0, "", false
		}

		cut, ok = s.cutWithin(window)
		if !ok {
			return 0, "", false
		}
		closer = ""
		if opener := s.openerAt(cut); opener != "" {
			closer = "\n" + fenceRun(opener)
		}

		if trimmedLen(s.text[s.pos:cut])+runeLen(closer) <= budget {
			return cut, closer, true
		}
		window = budget - runeLen(closer)
	}
	return 0, "", false
}

// cutWithin returns the end offset of the next chunk body, at most window
// characters past pos. ok is false when only an unacceptable hard cut exists.
func (s *splitter) cutWithin(window int) (cut int, ok bool) {
	hi := s.pos + window
	if hi >= s.end {
		return s.end, true
	}

	// Kept indentation is not a boundary.
	start := s.skipSpace(s.pos)

	for i := min(hi, s.end-2); i > start; i-- {
		if s.text[i] == '\n' && s.text[i+1] == '\n' && s.acceptable(i) {
			return i, true
		}
	}
	for i := hi - 1; i >= start; i-- {
		if s.text[i] == '.' && s.text[i+1] == ' ' && s.acceptable(i+1) {
			return i + 1, true
		}
	}
	for i := hi; i > start; i-- {
		if unicode.IsSpace(s.text[i]) && s.acceptable(i) {
			return i, true
		}
	}
	for i := hi; i > start; i-- {
		if s.acceptable(i) {
			return i, true
		}
	}

	return hi, false
}

// acceptable rejects cuts that split a fence marker, that end a chunk on its
// own opening fence line, or whose next chunk would start with backticks that
// render as a fence (a mid-line run, or a closer right after a re-opened fence).
func (s *splitter) acceptable(cut int) bool {
	p := s.lineContent(s.resume(cut))
	if hasPrefix(s.text[p:s.end], fenceMarker) {
		i := s.togglesBefore(p)
		if i == len(s.toggles) || s.toggles[i].at != p || s.toggles[i].opener == "" {
			return false
		}
	}

	n := s.togglesBefore(cut)
	if n == 0 {
		return true
	}
	t := s.toggles[n-1]
	if cut < s.markerEnd(t) {
		return false
	}
	if n%2 == 0 || t.at < s.pos {
		return true
	}

	nl := slices.Index(s.text[t.at:cut], '\n')
	if nl < 0 {
		return false
	}
	return slices.ContainsFunc(s.text[t.at+nl+1:cut], func(r rune) bool {
		return !unicode.IsSpace(r)
	})
}

// resume returns where the chunk after a cut starts. Boundary whitespace is
// dropped, except the indentation of the next line inside a fence.
func (s *splitter) resume(cut int) int {
	next := s.skipSpace(cut)
	if s.openerAt(cut) == "" {
		return next
	}
	for i := next - 1; i >= s.pos && unicode.IsSpace(s.text[i]); i-- {
		if s.text[i] == '\n' {
			return i + 1
		}
	}
	return next
}

// lineContent skips spaces and tabs, but not line breaks, from p.
func (s *splitter) lineContent(p int) int {
	for p < s.end && s.text[p] != '\n' && unicode.IsSpace(s.text[p]) {
		p++
	}
	return p
}

func (s *splitter) markerEnd(t fenceToggle) int {
	j := t.at
	for j < len(s.text) && s.text[j] == '`' {
		j++
	}
	return j
}

// openerAt returns the opening line of the fence that is open just before offset p.
func (s *splitter) openerAt(p int) string {
	n := s.togglesBefore(p)
	if n%2 == 0 {
		return ""
	}
	return s.toggles[n-1].opener
}

func (s *splitter) togglesBefore(p int) int {
	return sort.Search(len(s.toggles), func(i int) bool {
		return s.toggles[i].at >= p
	})
}

func (s *splitter) skipSpace(from int) int {
	for from < s.end && unicode.IsSpace(s.text[from]) {
		from++
	}
	return from
}

// fenceRun returns the leading backticks of an opening line, which is what
// closes it.
func fenceRun(opener string) string {
	return opener[:len(opener)-len(strings.TrimLeft(opener, "`"))]
}

func hasPrefix(r []rune, prefix string) bool {
	return strings.HasPrefix(string(r[:min(len(r), len(prefix))]), prefix)
}

func trimmedLen(r []rune) int {
	n := len(r)
	for n > 0 && unicode.IsSpace(r[n-1]) {
		n--
	}
	return n
}

func runeLen(s string) int {
	return len([]rune(s))
}
