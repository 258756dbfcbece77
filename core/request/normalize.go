package request

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxLength bounds normalized request text, in runes.
	DefaultMaxLength = 4000
	// DefaultMaxAttachmentLength bounds prior code and error payloads, in runes.
	DefaultMaxAttachmentLength = 32000
)

// EmptyInputError reports that nothing usable remained after normalization.
type EmptyInputError struct {
	Field string
}

func (e *EmptyInputError) Error() string {
	if e.Field == "" {
		return "empty input: request text is blank after normalization"
	}
	return "empty input: " + e.Field + " is blank after normalization"
}

// Normalizer cleans and bounds user-supplied text.
type Normalizer struct {
	MaxLength           int
	MaxAttachmentLength int
}

// NewNormalizer returns a Normalizer, substituting defaults for
// non-positive limits.
func NewNormalizer(maxLength, maxAttachmentLength int) Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if maxAttachmentLength <= 0 {
		maxAttachmentLength = DefaultMaxAttachmentLength
	}
	return Normalizer{MaxLength: maxLength, MaxAttachmentLength: maxAttachmentLength}
}

// Normalize uses the default limits.
func Normalize(raw string) (string, error) {
	return NewNormalizer(0, 0).Normalize(raw)
}

// Normalize trims, collapses whitespace runs to a single space, drops
// control characters and truncates to MaxLength runes on a word boundary.
func (n Normalizer) Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range strings.ToValidUTF8(raw, "") {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case isStripped(r):
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	out := truncateWords(b.String(), n.limit())
	if out == "" {
		return "", &EmptyInputError{}
	}
	return out, nil
}

func (n Normalizer) limit() int {
	if n.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return n.MaxLength
}

// NormalizeAttachment cleans prior code or an error payload. Line structure
// and indentation survive; CRLF becomes LF, control characters other than
// tab and newline are dropped, trailing whitespace is trimmed per line and
// the text is cut on a line boundary at the attachment limit.
func (n Normalizer) NormalizeAttachment(raw string) string {
	limit := n.MaxAttachmentLength
	if limit <= 0 {
		limit = DefaultMaxAttachmentLength
	}

	text := strings.ReplaceAll(strings.ToValidUTF8(raw, ""), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' || !isStripped(r) {
				return r
			}
			return -1
		}, line)
		kept = append(kept, strings.TrimRightFunc(line, unicode.IsSpace))
	}

	out := strings.Trim(strings.Join(kept, "\n"), "\n")
	return truncateLines(out, limit)
}

func isStripped(r rune) bool {
	return unicode.IsControl(r) || r == utf8.RuneError || unicode.Is(unicode.Cf, r)
}

func truncateWords(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := runePrefix(s, limit)
	// A cut that lands exactly before a space keeps the whole last word.
	if rest := s[len(cut):]; strings.HasPrefix(rest, " ") {
		return cut
	}
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		return cut[:i]
	}
	return cut
}

func truncateLines(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := runePrefix(s, limit)
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i]
	}
	return cut
}

func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
