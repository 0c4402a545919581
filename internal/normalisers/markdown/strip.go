// Package markdown strips markdown formatting from GitHub issue bodies
// and comments.
package markdown

import (
	"regexp"
	"strings"
)

var (
	codeFence     = regexp.MustCompile("(?m)^[ \\t]*```[^\\n]*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	htmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	blockquote    = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr            = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)
	taskMarkers   = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+\[[ xX]\][ \t]+`)
	listMarkers   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numberedList  = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Strip removes common markdown formatting. Code stays, fences go.
func Strip(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = htmlComment.ReplaceAllString(content, "")
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "~~", "")

	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = taskMarkers.ReplaceAllString(content, "$1")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
