package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/testutil"
)

const sampleAssessment = `1. What was the primary cause of the American Revolution?
A) High taxes without representation
B) Religious persecution
C) Territorial disputes
D) Trade restrictions

2. The Boston Tea Party occurred in 1773. True or False?

---
**Solutions**
1. A
2. True`

func newAssessmentGenerator(t *testing.T, mock *testutil.MockLLM) *AssessmentGenerator {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.RegisterModel(g)
	gen, err := NewAssessmentGenerator(AssessmentConfig{
		Genkit:    g,
		ModelName: "mock/tutor-model",
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewAssessmentGenerator() error: %v", err)
	}
	return gen
}

func TestAssessmentGenerate(t *testing.T) {
	mock := testutil.NewMockLLM("")
	mock.AddResponse("american revolution", sampleAssessment)
	gen := newAssessmentGenerator(t, mock)

	content, err := gen.Generate(context.Background(), AssessmentRequest{
		TestTitle:         "The American Revolution",
		GradeLevel:        "8th Grade",
		Subject:           "History",
		Topic:             "The American Revolution",
		AssessmentType:    "MCQ",
		TestDuration:      "30 minutes",
		NumberOfQuestions: 2,
		DifficultyLevel:   "Medium",
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if content != sampleAssessment {
		t.Errorf("content = %q", content)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(calls))
	}
	for _, want := range []string{
		"**Topic:** The American Revolution",
		"**Number of Questions:** 2",
		"**Language:** English",
		"**User-Specific Instructions:** None.",
	} {
		if !strings.Contains(calls[0].UserMessage, want) {
			t.Errorf("schema prompt missing %q:\n%s", want, calls[0].UserMessage)
		}
	}
}

func TestAssessmentGenerate_DistributionMismatch(t *testing.T) {
	gen := newAssessmentGenerator(t, testutil.NewMockLLM("x"))

	_, err := gen.Generate(context.Background(), AssessmentRequest{
		Topic:                "Fractions",
		AssessmentType:       "Mixed",
		QuestionTypes:        []string{"mcq", "true_false"},
		QuestionDistribution: map[string]int{"mcq": 6, "true_false": 2},
		NumberOfQuestions:    10,
	})
	if !errors.Is(err, ErrDistributionMismatch) {
		t.Fatalf("Generate() error = %v, want distribution mismatch", err)
	}
}

func TestAssessmentGenerate_EmptyOutput(t *testing.T) {
	gen := newAssessmentGenerator(t, testutil.NewMockLLM(""))

	_, err := gen.Generate(context.Background(), AssessmentRequest{
		Topic:             "Photosynthesis",
		NumberOfQuestions: 5,
	})
	if err == nil {
		t.Fatal("empty model output should error")
	}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"full english", sampleAssessment, true},
		{"arabic heading", "1. سؤال\n---\n**الحلول**\n1. صح", true},
		{"missing separator", "1. Question?\n**Solutions**\n1. A", false},
		{"missing solutions", "1. Question?\n---\nanswers below", false},
		{"no questions", "---\n**Solutions**", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFormat(tt.content); got != tt.want {
				t.Errorf("ValidFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}
