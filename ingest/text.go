package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"docuLearn/core"
)

var (
	blankRunRe = regexp.MustCompile(`\n{2,}`)
	pageNumRe  = regexp.MustCompile(`(?i)Page \d+`)
	hyphenRe   = regexp.MustCompile(`-\n`)
	nonASCIIRe = regexp.MustCompile(`[^\x00-\x7F]+`)
	numberedRe = regexp.MustCompile(`^\d+(\.\d+)*\s+`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// CleanText normalizes raw PDF text: collapses blank runs, strips page-number
// artifacts, rejoins words broken across line ends, and drops non-ASCII
// extraction noise.
func CleanText(text string) string {
	text = pageNumRe.ReplaceAllString(text, "")
	text = hyphenRe.ReplaceAllString(text, "")
	text = nonASCIIRe.ReplaceAllString(text, " ")
	// Blank runs are collapsed last: stripping page markers can open new ones.
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// IsHeading reports whether a line looks like a section heading: short
// all-caps lines and numbered headings qualify.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 5 {
		return false
	}
	if isAllUpper(line) && len(strings.Fields(line)) < 10 {
		return true
	}
	return numberedRe.MatchString(line)
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// NormalizeHeading collapses whitespace and caps heading length.
func NormalizeHeading(heading string) string {
	heading = spaceRunRe.ReplaceAllString(strings.TrimSpace(heading), " ")
	if len(heading) > 120 {
		heading = heading[:120]
	}
	return heading
}

func structureText(text string) []core.Section {
	var sections []core.Section
	current := core.Section{Heading: "Introduction"}
	var content strings.Builder

	flush := func() {
		current.Content = content.String()
		sections = append(sections, current)
		content.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if IsHeading(line) {
			flush()
			current = core.Section{Heading: strings.TrimSpace(line)}
			continue
		}
		content.WriteString(line)
		content.WriteString("\n")
	}
	flush()
	return sections
}

// StructurePages cleans each page and splits it into heading-delimited
// sections tagged with the page index.
func StructurePages(pages []string) []core.Section {
	var sections []core.Section
	for page, pageText := range pages {
		for _, s := range structureText(CleanText(pageText)) {
			s.Heading = NormalizeHeading(s.Heading)
			s.Content = strings.TrimSpace(s.Content)
			s.Page = page
			sections = append(sections, s)
		}
	}
	return sections
}
