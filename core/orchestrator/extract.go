package orchestrator

import (
	"regexp"
	"strings"
)

// codeBlockRegex matches ```lang\n...``` fences. \x60 is a backtick.
var codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60([a-zA-Z0-9_+.-]*)[ \t]*\r?\n(.*?)\x60\x60\x60")

var blankRunRegex = regexp.MustCompile(`\n{3,}`)

// ExtractCodeBlocks returns every non-empty fenced block in text, in order.
func ExtractCodeBlocks(text string) []CodeBlock {
	matches := codeBlockRegex.FindAllStringSubmatch(text, -1)
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		code := strings.TrimRight(m[2], " \t\r\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Language: strings.ToLower(m[1]), Code: code})
	}
	return blocks
}

// primaryBlock picks the longest block; the first wins ties.
func primaryBlock(blocks []CodeBlock) CodeBlock {
	best := blocks[0]
	for _, b := range blocks[1:] {
		if len(b.Code) > len(best.Code) {
			best = b
		}
	}
	return best
}

// explanationText is text with every fenced block removed.
func explanationText(text string) string {
	stripped := codeBlockRegex.ReplaceAllString(text, "")
	stripped = blankRunRegex.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}
