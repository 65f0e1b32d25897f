// Package media holds the generation engines behind the standalone content
// endpoints: assessments, teaching content, presentations, educational
// images, comic strips, and curated web searches.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
)

// ErrDistributionMismatch indicates a mixed assessment whose per-type
// question counts do not add up to the requested total.
var ErrDistributionMismatch = errors.New("question distribution does not match total questions")

// assessmentTemperature is higher than the tutoring default so repeated
// generations for the same topic produce varied question sets.
const assessmentTemperature = 0.7

const assessmentInstructions = `You are an expert AI assistant specialized in creating educational materials. Your task is to generate a set of test questions based on the user-provided schema.

Please adhere to the following specifications:
- **Role:** Act as an experienced teacher designing a test for your students.
- **Tone:** The tone should be professional, clear, and appropriate for the specified grade level.
- **Accuracy:** All questions must be factually accurate and directly relevant to the provided topic.

**CRITICAL OUTPUT FORMAT REQUIREMENTS:**

1. **Question Generation Rules:**
   - Generate questions numbered as: 1., 2., 3., etc.
   - For MCQ questions: Provide exactly 4 options labeled A), B), C), D)
   - For True/False questions: Provide clear statements without options
   - For Short Answer questions: Provide clear, direct questions
   - Each question must be on its own line
   - Options must be on separate lines immediately after each question

2. **Answer Section Format:**
   - After all questions, add exactly this separator line: ---
   - Then add the heading based on language:
     * If English: **Solutions**
     * If Arabic: **الحلول**
   - List each answer as: 1. [Answer], 2. [Answer], etc.
   - For MCQ: Use letter only (e.g., "1. C")
   - For True/False: Use "True" or "False" (e.g., "1. True")
   - For Short Answer: Provide complete answer (e.g., "1. The Treaty of Paris")

3. **Quality Requirements:**
   - Each question must be clear and unambiguous
   - All questions must be relevant to the specified topic and grade level
   - Answers must be factually correct
   - Language must be appropriate for the target grade level
   - Follow the exact question distribution if specified

**STRICT COMPLIANCE REQUIRED:** You must follow this exact format. Any deviation will cause parsing errors in the frontend system.`

// AssessmentRequest describes the test to generate.
type AssessmentRequest struct {
	TestTitle            string         `json:"test_title"`
	GradeLevel           string         `json:"grade_level"`
	Subject              string         `json:"subject"`
	Topic                string         `json:"topic"`
	AssessmentType       string         `json:"assessment_type"` // e.g. "MCQ", or "Mixed"
	QuestionTypes        []string       `json:"question_types,omitempty"`
	QuestionDistribution map[string]int `json:"question_distribution,omitempty"`
	TestDuration         string         `json:"test_duration"`
	NumberOfQuestions    int            `json:"number_of_questions"`
	DifficultyLevel      string         `json:"difficulty_level"` // Easy, Medium, Hard
	LearningObjectives   string         `json:"learning_objectives,omitempty"`
	AnxietyTriggers      string         `json:"anxiety_triggers,omitempty"`
	UserPrompt           string         `json:"user_prompt,omitempty"`
	Language             string         `json:"language,omitempty"`
}

func (r *AssessmentRequest) validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return errors.New("topic is required")
	}
	if r.NumberOfQuestions <= 0 {
		return errors.New("number of questions must be positive")
	}
	if r.Language == "" {
		r.Language = "English"
	}
	if r.UserPrompt == "" {
		r.UserPrompt = "None."
	}
	if r.AssessmentType == "Mixed" && len(r.QuestionDistribution) > 0 {
		total := 0
		for _, n := range r.QuestionDistribution {
			total += n
		}
		if total != r.NumberOfQuestions {
			return fmt.Errorf("%w: distributed %d, total %d",
				ErrDistributionMismatch, total, r.NumberOfQuestions)
		}
	}
	return nil
}

// AssessmentConfig holds the dependencies for an AssessmentGenerator.
type AssessmentConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Logger    log.Logger
}

func (c AssessmentConfig) validate() error {
	if c.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if c.ModelName == "" {
		return errors.New("model name is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// AssessmentGenerator produces strictly formatted test papers with a
// separated answer key.
type AssessmentGenerator struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// NewAssessmentGenerator creates an AssessmentGenerator.
func NewAssessmentGenerator(cfg AssessmentConfig) (*AssessmentGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &AssessmentGenerator{g: cfg.Genkit, model: cfg.ModelName, logger: cfg.Logger}, nil
}

// Generate produces the formatted assessment. A format mismatch in the
// output is logged but not fatal, the caller still gets the content.
func (a *AssessmentGenerator) Generate(ctx context.Context, req AssessmentRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.model),
		ai.WithSystem(assessmentInstructions),
		ai.WithPrompt(assessmentSchemaPrompt(req)),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: assessmentTemperature}),
	)
	if err != nil {
		return "", fmt.Errorf("generating assessment: %w", err)
	}

	content := resp.Text()
	if content == "" {
		return "", errors.New("assessment generation returned empty content")
	}
	if !ValidFormat(content) {
		a.logger.Warn("generated assessment deviates from the expected format",
			"topic", req.Topic, "type", req.AssessmentType)
	}

	a.logger.Info("assessment generated",
		"topic", req.Topic, "questions", req.NumberOfQuestions, "language", req.Language)
	return content, nil
}

func assessmentSchemaPrompt(req AssessmentRequest) string {
	var sb strings.Builder
	sb.WriteString("**Test Generation Schema:**\n")
	fmt.Fprintf(&sb, "- **Test Title:** %s\n", req.TestTitle)
	fmt.Fprintf(&sb, "- **Grade Level:** %s\n", req.GradeLevel)
	fmt.Fprintf(&sb, "- **Subject:** %s\n", req.Subject)
	fmt.Fprintf(&sb, "- **Topic:** %s\n", req.Topic)
	fmt.Fprintf(&sb, "- **Assessment Type:** %s\n", req.AssessmentType)
	if len(req.QuestionTypes) > 0 {
		fmt.Fprintf(&sb, "- **Question Types:** %s\n", strings.Join(req.QuestionTypes, ", "))
	}
	if len(req.QuestionDistribution) > 0 {
		fmt.Fprintf(&sb, "- **Question Distribution:** %v\n", req.QuestionDistribution)
	}
	fmt.Fprintf(&sb, "- **Language:** %s\n", req.Language)
	fmt.Fprintf(&sb, "- **Test Duration:** %s\n", req.TestDuration)
	fmt.Fprintf(&sb, "- **Number of Questions:** %d\n", req.NumberOfQuestions)
	fmt.Fprintf(&sb, "- **Difficulty Level:** %s\n", req.DifficultyLevel)
	if req.LearningObjectives != "" {
		fmt.Fprintf(&sb, "- **Learning Objectives:** %s\n", req.LearningObjectives)
	}
	if req.AnxietyTriggers != "" {
		fmt.Fprintf(&sb, "- **Anxiety Considerations:** %s\n", req.AnxietyTriggers)
	}
	fmt.Fprintf(&sb, "- **User-Specific Instructions:** %s\n", req.UserPrompt)
	return sb.String()
}

// ValidFormat reports whether generated assessment content carries numbered
// questions, the answer separator, and a solutions heading.
func ValidFormat(content string) bool {
	if content == "" {
		return false
	}
	hasQuestion := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		for i := 1; i <= 20 && !hasQuestion; i++ {
			if strings.HasPrefix(trimmed, fmt.Sprintf("%d.", i)) {
				hasQuestion = true
			}
		}
	}
	hasSeparator := strings.Contains(content, "---")
	hasSolutions := strings.Contains(content, "**Solutions**") ||
		strings.Contains(content, "**الحلول**")
	return hasQuestion && hasSeparator && hasSolutions
}
