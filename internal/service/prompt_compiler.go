package service

import (
	"strconv"
	"strings"

	"github.com/noah-isme/graderbot/internal/models"
)

const blankExemplarNote = "(no example given; extrapolate from the neighbouring scores)"

// CompileContext carries batch-wide prompt options.
type CompileContext struct {
	Format models.PromptFormat
	// Course is added to the prompt only when set.
	Course string
}

func (c CompileContext) format() models.PromptFormat {
	if c.Format.Valid() {
		return c.Format
	}
	return models.PromptFormatText
}

// Compile builds the grading prompt for one student's answer to one question.
// A nil rubric leaves every rubric reference out of the prompt.
func Compile(question models.Question, rubric *models.RubricEntry, student models.StudentAnswer, ctx CompileContext) models.GradingPrompt {
	format := ctx.format()
	maxScore := formatScore(question.MaxScore)

	var b strings.Builder
	b.WriteString("You are grading a student's answer to an exam question.\n")
	if course := strings.TrimSpace(ctx.Course); course != "" {
		b.WriteString("Course: ")
		b.WriteString(course)
		b.WriteString("\n")
	}

	b.WriteString("\n## Question ")
	b.WriteString(strconv.Itoa(question.Number))
	b.WriteString("\n")
	b.WriteString(question.Text)
	b.WriteString("\n\n## Maximum Score\n")
	b.WriteString(maxScore)
	b.WriteString("\n")

	levels := rubricLevels(rubric, question.MaxScore)
	if len(levels) > 0 {
		b.WriteString("\n## Rubric\n")
		for _, level := range levels {
			b.WriteString("- Score ")
			b.WriteString(strconv.Itoa(level.Score))
			b.WriteString(": ")
			if level.ExampleAnswer == "" {
				b.WriteString(blankExemplarNote)
			} else {
				b.WriteString(level.ExampleAnswer)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Student Answer\n")
	b.WriteString(student.Answer(question.Number))
	b.WriteString("\n\n## Instructions\n")

	step := 1
	writeStep := func(text string) {
		b.WriteString(strconv.Itoa(step))
		b.WriteString(". ")
		b.WriteString(text)
		b.WriteString("\n")
		step++
	}
	if len(levels) > 0 {
		writeStep("Compare the student answer against the rubric examples for each score.")
	}
	writeStep("Weigh concept coverage, clarity, completeness and depth of understanding.")
	if format == models.PromptFormatJSON {
		writeStep(`Respond with only a JSON object of the form {"score": <number>, "maximumScore": ` + maxScore + `} and nothing else.`)
	} else {
		writeStep("Respond with only the score in the form score/" + maxScore + " (for example 3/" + maxScore + ") and nothing else.")
	}

	return models.GradingPrompt{
		StudentNumber:  student.StudentNumber,
		QuestionNumber: question.Number,
		MaxScore:       question.MaxScore,
		Format:         format,
		Text:           b.String(),
	}
}

// CompileBatch cross-joins questions and students, question-major and student-minor,
// in input order. Index is the position of each prompt in the returned slice.
func CompileBatch(questions []models.Question, rubrics []models.RubricEntry, students []models.StudentAnswer, ctx CompileContext) []models.GradingPrompt {
	byQuestion := make(map[int]*models.RubricEntry, len(rubrics))
	for i := range rubrics {
		if _, exists := byQuestion[rubrics[i].QuestionNumber]; !exists {
			byQuestion[rubrics[i].QuestionNumber] = &rubrics[i]
		}
	}

	prompts := make([]models.GradingPrompt, 0, len(questions)*len(students))
	for _, question := range questions {
		rubric := byQuestion[question.Number]
		for _, student := range students {
			prompt := Compile(question, rubric, student, ctx)
			prompt.Index = len(prompts)
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

// rubricLevels drops blank levels scoring above the question maximum; a grading
// scheme shares rows across questions with different maxima.
func rubricLevels(rubric *models.RubricEntry, maxScore float64) []models.RubricLevel {
	if rubric == nil {
		return nil
	}
	levels := make([]models.RubricLevel, 0, len(rubric.Levels))
	for _, level := range rubric.Levels {
		if maxScore > 0 && float64(level.Score) > maxScore && level.ExampleAnswer == "" {
			continue
		}
		levels = append(levels, level)
	}
	return levels
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
