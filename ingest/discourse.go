package ingest

import (
	"strings"

	"docuLearn/core"
)

// ClassifyDiscourse tags each section with a rule-based discourse type. The
// first matching rule wins; everything else is an explanation.
func ClassifyDiscourse(sections []core.Section) []core.Section {
	for i := range sections {
		content := strings.ToLower(sections[i].Content)
		head := content
		if len(head) > 80 {
			head = head[:80]
		}

		discourse := "explanation"
		switch {
		case strings.Contains(content, "definition") || strings.Contains(head, " is "):
			discourse = "definition"
		case strings.Contains(content, "example"):
			discourse = "example"
		case strings.Contains(content, "steps") || strings.Contains(content, "procedure"):
			discourse = "procedure"
		case strings.Contains(content, "conclusion"):
			discourse = "conclusion"
		}
		sections[i].DiscourseType = discourse
	}
	return sections
}
