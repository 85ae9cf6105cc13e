package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docuLearn/core"
)

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type MCQ struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type QuickNotes struct {
	Flashcards         []Flashcard `json:"flashcards"`
	CheatSheet         string      `json:"cheat_sheet"`
	MCQs               []MCQ       `json:"mcqs"`
	InterviewQuestions []string    `json:"interview_questions"`
}

const notesTextLimit = 4000

// GenerateQuickNotes asks the model for structured study notes over the
// document text and validates the JSON it returns.
func GenerateQuickNotes(ctx context.Context, gen Generator, text string) (*QuickNotes, error) {
	if len(text) > notesTextLimit {
		text = text[:notesTextLimit]
	}
	prompt := "Return ONLY valid JSON with this schema:\n" +
		"{\n" +
		"  \"flashcards\": [{\"question\": \"...\", \"answer\": \"...\"}],\n" +
		"  \"cheat_sheet\": \"...\",\n" +
		"  \"mcqs\": [{\"question\": \"...\", \"options\": [\"A\", \"B\", \"C\", \"D\"], \"answer\": \"A\"}],\n" +
		"  \"interview_questions\": [\"...\"]\n" +
		"}\n\n" +
		"Create quick study notes from the text:\n" +
		"- 5 flashcards (Q/A)\n" +
		"- One-page cheat sheet\n" +
		"- 5 MCQs with answers\n" +
		"- 5 interview questions\n\n" +
		"Text:\n" + text

	raw, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, core.NewRunError(core.KindNotes, err)
	}

	var notes QuickNotes
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &notes); err != nil {
		return nil, core.NewRunError(core.KindNotes, fmt.Errorf("parse notes JSON: %w", err))
	}
	if len(notes.Flashcards) == 0 && notes.CheatSheet == "" && len(notes.MCQs) == 0 && len(notes.InterviewQuestions) == 0 {
		return nil, core.NewRunError(core.KindNotes, fmt.Errorf("model returned empty notes"))
	}
	return &notes, nil
}

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from model output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
