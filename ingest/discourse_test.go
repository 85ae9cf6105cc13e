package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docuLearn/core"
)

func TestClassifyDiscourse(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"definition keyword", "The formal definition follows from the axioms.", "definition"},
		{"copula in head", "A graph is a set of nodes and edges. The structure appears everywhere.", "definition"},
		{"example", "For example, consider sorting a list of numbers.", "example"},
		{"procedure", "Follow these steps to configure the cluster.", "procedure"},
		{"conclusion", "In conclusion, the approach scales linearly.", "conclusion"},
		{"fallback", "Gradient descent updates parameters iteratively.", "explanation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDiscourse([]core.Section{{Content: tc.content}})
			assert.Equal(t, tc.want, got[0].DiscourseType)
		})
	}
}

func TestClassifyDiscourseCopulaOnlyInHead(t *testing.T) {
	// " is " beyond the first 80 characters does not make a definition.
	content := "Consider the following background material about optimization methods and then: it is useful."
	got := ClassifyDiscourse([]core.Section{{Content: content}})
	assert.Equal(t, "explanation", got[0].DiscourseType)
}
