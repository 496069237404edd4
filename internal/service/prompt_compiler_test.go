package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/models"
)

func TestCompileEmbedsAllSections(t *testing.T) {
	question := models.Question{Number: 2, Text: "Explain polymorphism.", MaxScore: 3}
	rubric := &models.RubricEntry{QuestionNumber: 2, Levels: []models.RubricLevel{
		{Score: 1, ExampleAnswer: "Mentions objects"},
		{Score: 2, ExampleAnswer: ""},
		{Score: 3, ExampleAnswer: "Explains dispatch with an example"},
	}}
	student := models.StudentAnswer{StudentNumber: "S9", Answers: map[int]string{2: "Many forms"}}

	prompt := Compile(question, rubric, student, CompileContext{Course: "CS 201"})
	require.Equal(t, "S9", prompt.StudentNumber)
	require.Equal(t, 2, prompt.QuestionNumber)
	require.Equal(t, float64(3), prompt.MaxScore)
	require.Equal(t, models.PromptFormatText, prompt.Format)

	for _, fragment := range []string{
		"Course: CS 201",
		"## Question 2\nExplain polymorphism.",
		"## Maximum Score\n3",
		"- Score 1: Mentions objects",
		"- Score 2: " + blankExemplarNote,
		"- Score 3: Explains dispatch with an example",
		"## Student Answer\nMany forms",
		"Compare the student answer against the rubric",
		"score/3",
	} {
		require.Contains(t, prompt.Text, fragment)
	}
}

func TestCompileWithoutRubricOmitsRubricReferences(t *testing.T) {
	question := models.Question{Number: 1, Text: "Q", MaxScore: 5}
	student := models.StudentAnswer{StudentNumber: "S1", Answers: map[int]string{}}

	prompt := Compile(question, nil, student, CompileContext{Format: models.PromptFormatJSON})
	require.NotContains(t, strings.ToLower(prompt.Text), "rubric")
	require.NotContains(t, prompt.Text, "Course:")
	require.Contains(t, prompt.Text, models.NoAnswerProvided)
	require.Contains(t, prompt.Text, `"maximumScore": 5`)
	require.Equal(t, models.PromptFormatJSON, prompt.Format)
}

func TestCompileBatchOrderAndCount(t *testing.T) {
	questions := []models.Question{{Number: 1, Text: "a", MaxScore: 2}, {Number: 2, Text: "b", MaxScore: 4}}
	students := []models.StudentAnswer{
		{StudentNumber: "S1", Answers: map[int]string{1: "x"}},
		{StudentNumber: "S2", Answers: map[int]string{1: "y", 2: "z"}},
		{StudentNumber: "S3", Answers: map[int]string{}},
	}
	rubrics := []models.RubricEntry{{QuestionNumber: 2, Levels: []models.RubricLevel{{Score: 1, ExampleAnswer: "ok"}}}}

	prompts := CompileBatch(questions, rubrics, students, CompileContext{})
	require.Len(t, prompts, len(questions)*len(students))

	expected := []struct {
		question int
		student  string
	}{{1, "S1"}, {1, "S2"}, {1, "S3"}, {2, "S1"}, {2, "S2"}, {2, "S3"}}
	for i, want := range expected {
		require.Equal(t, i, prompts[i].Index)
		require.Equal(t, want.question, prompts[i].QuestionNumber)
		require.Equal(t, want.student, prompts[i].StudentNumber)
	}

	require.NotContains(t, prompts[0].Text, "## Rubric")
	require.Contains(t, prompts[3].Text, "## Rubric")
	require.Contains(t, prompts[2].Text, models.NoAnswerProvided)
}

func TestCompileBatchEmptyInputs(t *testing.T) {
	require.Empty(t, CompileBatch(nil, nil, []models.StudentAnswer{{StudentNumber: "S1"}}, CompileContext{}))
	require.Empty(t, CompileBatch([]models.Question{{Number: 1, MaxScore: 1}}, nil, nil, CompileContext{}))
}
