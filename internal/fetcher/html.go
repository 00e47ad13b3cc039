package fetcher

import (
	"regexp"
	"strings"
)

// elementsToStrip are removed along with everything between their open and
// close tags — scripts and styles are noise, and nav/header/footer
// boilerplate rarely carries content relevant to tool generation.
var elementsToStrip = []string{"script", "style", "nav", "header", "footer"}

var elementStripPatterns = buildElementStripPatterns(elementsToStrip)

func buildElementStripPatterns(tags []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		patterns[i] = regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>.*?</` + tag + `\s*>`)
	}
	return patterns
}

// tagPattern matches any remaining HTML tag for blanking.
var tagPattern = regexp.MustCompile(`(?s)<[^>]+>`)

var whitespacePattern = regexp.MustCompile(`\s+`)

var htmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML reduces an HTML document to plain text: script/style/nav/header/
// footer elements are removed including their contents, every remaining tag
// is blanked to a single space (preserving word boundaries), a small entity
// set is decoded, and whitespace runs collapse to single spaces.
func StripHTML(html string) string {
	for _, p := range elementStripPatterns {
		html = p.ReplaceAllString(html, "")
	}

	html = tagPattern.ReplaceAllString(html, " ")
	html = htmlEntityReplacer.Replace(html)
	html = whitespacePattern.ReplaceAllString(html, " ")
	return strings.TrimSpace(html)
}
