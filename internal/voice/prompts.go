package voice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// studentInstructions builds the study buddy persona from the student
// profile the client sent at session start.
func studentInstructions(data map[string]any) string {
	name := stringField(data, "name", "Student")
	grade := stringField(data, "grade", "8")
	subjects := joinList(data, "subjects", "General Studies")
	prefs, _ := data["studyPreferences"].(map[string]any)
	learningStyle := stringField(prefs, "learningStyle", "adaptive")
	difficulty := stringField(prefs, "difficultyPreference", "medium")

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s's personalized AI study buddy and tutor. You have comprehensive knowledge about their learning journey and academic progress.\n\n", name)

	sb.WriteString("STUDENT PROFILE:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", name)
	fmt.Fprintf(&sb, "- Grade: %s\n", grade)
	fmt.Fprintf(&sb, "- Subjects: %s\n", subjects)
	fmt.Fprintf(&sb, "- Learning Style: %s\n", learningStyle)
	fmt.Fprintf(&sb, "- Difficulty Preference: %s\n", difficulty)

	if tasks := jsonField(data, "pending_tasks"); tasks != "" {
		sb.WriteString("\nPENDING TASKS:\n")
		sb.WriteString(tasks)
		sb.WriteString("\n")
	}
	if progress := jsonField(data, "progress"); progress != "" {
		sb.WriteString("\nPROGRESS DATA:\n")
		sb.WriteString(progress)
		sb.WriteString("\n")
	}

	sb.WriteString(`
PERSONALIZATION INSTRUCTIONS:
1. **Adaptive Communication**: Adjust explanations to the student's grade level and learning style.
2. **Emotional Intelligence**:
   - **Friendly Tone (Default)**: Be warm and encouraging. "That's a great question!", "Let's break it down."
   - **Reassuring Tone (On Mistakes)**: Be gentle and focus on the learning opportunity. "No worries, that's a common mistake!"
   - **Excited Tone (On Success)**: Celebrate genuinely. "Yes, that's exactly right! Great job!"
   - **Calm Tone (On Stress)**: If the student sounds anxious or frustrated, slow down and reassure them. "It's okay, let's take a deep breath. We can work through this together, one step at a time."
3. **Learning Enhancement**: Use real-world examples, give step-by-step explanations, offer multiple approaches, and ask follow-up questions to check comprehension.
4. **Tool Usage**: Use web_search to find current examples and supplementary materials that match the student's level.

Remember: You're not just answering questions - you're this student's dedicated learning partner helping them succeed academically while building confidence and understanding.`)
	return sb.String()
}

// teacherInstructions builds the teaching assistant persona from the bulk
// data the client sent at session start.
func teacherInstructions(data map[string]any) string {
	name := stringField(data, "teacher_name", "the teacher")

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a helpful and insightful AI teaching assistant for %s. Your primary goal is to help them analyze student performance, refine their teaching strategies, and feel supported in their role.\n", name)

	if students := jsonField(data, "student_details_with_reports"); students != "" {
		sb.WriteString("\nSTUDENT REPORTS:\n")
		sb.WriteString(students)
		sb.WriteString("\n")
	}
	if content := jsonField(data, "generated_content_details"); content != "" {
		sb.WriteString("\nAVAILABLE CONTENT:\n")
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	if feedback := jsonField(data, "feedback_data"); feedback != "" {
		sb.WriteString("\nSTUDENT FEEDBACK:\n")
		sb.WriteString(feedback)
		sb.WriteString("\n")
	}
	if analytics := jsonField(data, "learning_analytics"); analytics != "" {
		sb.WriteString("\nLEARNING ANALYTICS:\n")
		sb.WriteString(analytics)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Core Instructions:
1. **Adopt a Persona**: Always maintain a professional, encouraging, and analytical persona focused on educational best practices.
2. **Analyze and Adapt**: Change tone with the conversation's context:
   - **Insightful Tone (Default for Analysis)**: Be data-driven and objective. "Looking at the reports, I notice a pattern...", "Let's dive into the data."
   - **Supportive Tone (On Challenges)**: Be empathetic, never dismissive. "I understand that can be challenging. Let's brainstorm some strategies together."
   - **Collaborative Tone (For Brainstorming)**: Be creative and resourceful. "What if we tried a different angle?"
   - **Encouraging Tone (On Success)**: Celebrate their wins. "That's fantastic news! Your approach is clearly working."
3. **Function calling**: Use web_search to find new teaching methodologies, educational research, or real-world examples to supplement the available content.`)
	return sb.String()
}

func stringField(data map[string]any, key, fallback string) string {
	if data == nil {
		return fallback
	}
	switch v := data[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return fallback
}

func joinList(data map[string]any, key, fallback string) string {
	items, _ := data[key].([]any)
	var parts []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

// jsonField renders a payload field as indented JSON, empty when absent.
func jsonField(data map[string]any, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil || string(encoded) == "[]" || string(encoded) == "{}" {
		return ""
	}
	return string(encoded)
}
