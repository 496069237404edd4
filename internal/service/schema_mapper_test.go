package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/pkg/csvnorm"
)

func mustRows(t *testing.T, raw string) []csvnorm.Row {
	t.Helper()
	rows, err := csvnorm.Normalize(raw)
	require.NoError(t, err)
	return rows
}

func TestMapQuestionsUsesNumberColumnOrOrdinal(t *testing.T) {
	withNumbers := mustRows(t, "QuestionNumber,Question,MaximumScore\n3,Define recursion,4\n7,\"Explain\nstack frames\",6\n")
	questions, err := MapQuestions(withNumbers)
	require.NoError(t, err)
	require.Equal(t, []models.Question{
		{Number: 3, Text: "Define recursion", MaxScore: 4},
		{Number: 7, Text: "Explain\nstack frames", MaxScore: 6},
	}, questions)

	ordinal := mustRows(t, "question,max_score\nWhat is a tree?,5\nWhat is a graph?,2.5\n")
	questions, err = MapQuestions(ordinal)
	require.NoError(t, err)
	require.Equal(t, 1, questions[0].Number)
	require.Equal(t, 2, questions[1].Number)
	require.Equal(t, 2.5, questions[1].MaxScore)
}

func TestMapQuestionsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing_question_column": "Text,MaximumScore\nfoo,3\n",
		"missing_max_column":      "Question,Points\nfoo,3\n",
		"non_numeric_max":         "Question,MaximumScore\nfoo,lots\n",
		"zero_max":                "Question,MaximumScore\nfoo,0\n",
		"duplicate_number":        "QuestionNumber,Question,MaximumScore\n1,a,2\n1,b,2\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := MapQuestions(mustRows(t, raw))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestMapRubricAssignsOrdinalScores(t *testing.T) {
	rows := mustRows(t, "Rubric2,Rubric1\nweak,none\n,partial\nstrong,full\n")
	entries, err := MapRubric(rows)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, 1, entries[0].QuestionNumber)
	require.Equal(t, []models.RubricLevel{
		{Score: 1, ExampleAnswer: "none"},
		{Score: 2, ExampleAnswer: "partial"},
		{Score: 3, ExampleAnswer: "full"},
	}, entries[0].Levels)

	require.Equal(t, 2, entries[1].QuestionNumber)
	require.Equal(t, "", entries[1].Levels[1].ExampleAnswer, "blank cells stay as blank exemplars")
	for i, level := range entries[1].Levels {
		require.Equal(t, i+1, level.Score)
	}
}

func TestMapRubricRequiresRubricColumns(t *testing.T) {
	_, err := MapRubric(mustRows(t, "Score,Example\n1,foo\n"))
	require.ErrorIs(t, err, ErrParse)
}

func TestMapRubricFileIgnoresScoreColumn(t *testing.T) {
	rows := mustRows(t, "QuestionNumber,Score,ExampleAnswer\n2,10,alpha\n1,5,beta\n2,20,gamma\n")
	entries, err := MapRubricFile(rows)
	require.NoError(t, err)
	require.Equal(t, []models.RubricEntry{
		{QuestionNumber: 1, Levels: []models.RubricLevel{{Score: 1, ExampleAnswer: "beta"}}},
		{QuestionNumber: 2, Levels: []models.RubricLevel{{Score: 1, ExampleAnswer: "alpha"}, {Score: 2, ExampleAnswer: "gamma"}}},
	}, entries)

	_, err = MapRubricFile(mustRows(t, "QuestionNumber,ExampleAnswer\nx,alpha\n"))
	require.ErrorIs(t, err, ErrParse)
}

func TestMapStudentsFillsSentinel(t *testing.T) {
	questions := []models.Question{{Number: 1, MaxScore: 2}, {Number: 2, MaxScore: 3}, {Number: 3, MaxScore: 1}}
	rows := mustRows(t, "StudentNumber,Question1Answer,Question2Answer\nS1,\"line one\nline two\",\nS2,yes,no\n")

	students, err := MapStudents(rows, questions)
	require.NoError(t, err)
	require.Len(t, students, 2)

	require.Equal(t, "S1", students[0].StudentNumber)
	require.Equal(t, "line one\nline two", students[0].Answer(1))
	require.Equal(t, models.NoAnswerProvided, students[0].Answer(2))
	require.Equal(t, models.NoAnswerProvided, students[0].Answer(3))
	require.Len(t, students[0].Answers, 3)

	require.Equal(t, "yes", students[1].Answer(1))
	require.Equal(t, "no", students[1].Answer(2))
}

func TestMapStudentsWithoutStudentNumber(t *testing.T) {
	students, err := MapStudents(mustRows(t, "Question1\nfoo\nbar\n"), []models.Question{{Number: 1, MaxScore: 1}})
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "", students[0].StudentNumber)
	require.Equal(t, "", students[1].StudentNumber)
	require.Equal(t, "bar", students[1].Answer(1))
}
