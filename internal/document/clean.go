package document

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Markdown punctuation is replaced with a space, not removed, so that
	// "word*word" keeps its word boundary after cleaning.
	markdownChars = regexp.MustCompile("[*_`#>\\-\\[\\]()~]")

	blankLines       = regexp.MustCompile(`\n\s*\n+`)
	horizontalSpaces = regexp.MustCompile(`[ \t]+`)
)

// maxCleanPasses bounds the fixpoint loop in Clean. Two passes settle any
// realistic input; the cap only guards against pathological text.
const maxCleanPasses = 4

// Clean strips HTML markup and markdown punctuation from text and normalizes
// whitespace. The pass is applied to a fixpoint, so Clean(Clean(x)) always
// equals Clean(x), including for double-escaped HTML entities.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	for range maxCleanPasses {
		next := cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func cleanOnce(text string) string {
	text = stripHTML(text)
	text = markdownChars.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = horizontalSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripHTML decodes entities and drops tags, script, and style content.
// Falls back to the raw input if the fragment cannot be parsed.
func stripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}
