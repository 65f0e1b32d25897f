package voice

import (
	"strings"
	"testing"
)

func TestStudentInstructions(t *testing.T) {
	got := studentInstructions(map[string]any{
		"name":     "Omar",
		"grade":    "10",
		"subjects": []any{"Math", "Physics"},
		"studyPreferences": map[string]any{
			"learningStyle": "visual",
		},
		"pending_tasks": []any{
			map[string]any{"subject": "Math", "task": "Algebra worksheet"},
		},
	})

	for _, want := range []string{
		"Omar's personalized AI study buddy",
		"- Grade: 10",
		"- Subjects: Math, Physics",
		"- Learning Style: visual",
		"- Difficulty Preference: medium",
		"Algebra worksheet",
		"web_search",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}

func TestStudentInstructions_Defaults(t *testing.T) {
	got := studentInstructions(nil)
	for _, want := range []string{"Student's personalized", "- Grade: 8", "General Studies"} {
		if !strings.Contains(got, want) {
			t.Errorf("default instructions missing %q", want)
		}
	}
	if strings.Contains(got, "PENDING TASKS") {
		t.Error("empty payload should not render a tasks section")
	}
}

func TestTeacherInstructions(t *testing.T) {
	got := teacherInstructions(map[string]any{
		"teacher_name": "Mr. Haddad",
		"student_details_with_reports": []any{
			map[string]any{"student_name": "Jane Smith", "reports": []any{
				map[string]any{"subject": "Math", "score": 92.0},
			}},
		},
	})

	for _, want := range []string{
		"AI teaching assistant for Mr. Haddad",
		"Jane Smith",
		"Insightful Tone",
		"web_search",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}

func TestTeacherInstructions_Defaults(t *testing.T) {
	got := teacherInstructions(nil)
	if !strings.Contains(got, "teaching assistant for the teacher") {
		t.Errorf("fallback teacher name missing:\n%s", got)
	}
}
