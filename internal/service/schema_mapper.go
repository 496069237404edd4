package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/pkg/csvnorm"
)

var (
	answerHeaderPattern = regexp.MustCompile(`^question(\d+)(answer)?$`)
	rubricHeaderPattern = regexp.MustCompile(`^rubric(\d+)$`)
	headerNoise         = strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "")
)

// headerKey folds a header to the form used for matching: lowercase, no separators.
func headerKey(header string) string {
	return headerNoise.Replace(strings.ToLower(strings.TrimSpace(header)))
}

func findColumn(headers []string, keys ...string) (string, bool) {
	for _, key := range keys {
		for _, header := range headers {
			if headerKey(header) == key {
				return header, true
			}
		}
	}
	return "", false
}

type numberedColumn struct {
	header string
	number int
}

func numberedColumns(headers []string, pattern *regexp.Regexp) []numberedColumn {
	columns := make([]numberedColumn, 0)
	seen := map[int]struct{}{}
	for _, header := range headers {
		match := pattern.FindStringSubmatch(headerKey(header))
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil || number <= 0 {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		columns = append(columns, numberedColumn{header: header, number: number})
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].number < columns[j].number })
	return columns
}

func rowsHeaders(rows []csvnorm.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0].Headers
}

// MapQuestions converts the questions file. Question and MaximumScore columns are
// required; QuestionNumber is used when present, otherwise the row ordinal.
func MapQuestions(rows []csvnorm.Row) ([]models.Question, error) {
	if len(rows) == 0 {
		return nil, &csvnorm.ParseError{Reason: "questions file has no data rows"}
	}

	headers := rowsHeaders(rows)
	textColumn, ok := findColumn(headers, "question")
	if !ok {
		return nil, &csvnorm.ParseError{Row: 1, Reason: "questions file is missing the Question column"}
	}
	maxColumn, ok := findColumn(headers, "maximumscore", "maxscore")
	if !ok {
		return nil, &csvnorm.ParseError{Row: 1, Reason: "questions file is missing the MaximumScore column"}
	}
	numberColumn, hasNumber := findColumn(headers, "questionnumber")

	questions := make([]models.Question, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for i, row := range rows {
		number := i + 1
		if hasNumber {
			if parsed, err := strconv.Atoi(strings.TrimSpace(row.Get(numberColumn))); err == nil && parsed > 0 {
				number = parsed
			}
		}
		if _, dup := seen[number]; dup {
			return nil, &csvnorm.ParseError{Row: i + 2, Reason: fmt.Sprintf("duplicate question number %d", number)}
		}
		seen[number] = struct{}{}

		rawMax := strings.TrimSpace(row.Get(maxColumn))
		maxScore, err := strconv.ParseFloat(rawMax, 64)
		if err != nil || maxScore <= 0 {
			return nil, &csvnorm.ParseError{Row: i + 2, Reason: fmt.Sprintf("maximum score %q is not a positive number", rawMax)}
		}

		questions = append(questions, models.Question{
			Number:   number,
			Text:     strings.TrimSpace(row.Get(textColumn)),
			MaxScore: maxScore,
		})
	}

	return questions, nil
}

// MapRubric converts the grading scheme: column Rubric<N> holds the levels of
// question N and row i holds score i+1. Blank cells stay as blank exemplars.
func MapRubric(rows []csvnorm.Row) ([]models.RubricEntry, error) {
	columns := numberedColumns(rowsHeaders(rows), rubricHeaderPattern)
	if len(columns) == 0 {
		return nil, &csvnorm.ParseError{Row: 1, Reason: "grading scheme has no Rubric<N> columns"}
	}

	entries := make([]models.RubricEntry, 0, len(columns))
	for _, column := range columns {
		levels := make([]models.RubricLevel, len(rows))
		for i, row := range rows {
			levels[i] = models.RubricLevel{
				Score:         i + 1,
				ExampleAnswer: strings.TrimSpace(row.Get(column.header)),
			}
		}
		entries = append(entries, models.RubricEntry{QuestionNumber: column.number, Levels: levels})
	}

	return entries, nil
}

// MapRubricFile converts the free-form rubric file: one row per level with a
// QuestionNumber column. Levels are numbered by their order within the question;
// any Score column is ignored.
func MapRubricFile(rows []csvnorm.Row) ([]models.RubricEntry, error) {
	headers := rowsHeaders(rows)
	numberColumn, ok := findColumn(headers, "questionnumber")
	if !ok {
		return nil, &csvnorm.ParseError{Row: 1, Reason: "rubric file is missing the QuestionNumber column"}
	}
	exampleColumn, ok := findColumn(headers, "exampleanswer", "example", "rubric", "answer", "description")
	if !ok {
		return nil, &csvnorm.ParseError{Row: 1, Reason: "rubric file is missing an ExampleAnswer column"}
	}

	byQuestion := make(map[int]*models.RubricEntry)
	order := make([]int, 0)
	for i, row := range rows {
		rawNumber := strings.TrimSpace(row.Get(numberColumn))
		number, err := strconv.Atoi(rawNumber)
		if err != nil || number <= 0 {
			return nil, &csvnorm.ParseError{Row: i + 2, Reason: fmt.Sprintf("question number %q is not a positive integer", rawNumber)}
		}

		entry, exists := byQuestion[number]
		if !exists {
			entry = &models.RubricEntry{QuestionNumber: number}
			byQuestion[number] = entry
			order = append(order, number)
		}
		entry.Levels = append(entry.Levels, models.RubricLevel{
			Score:         len(entry.Levels) + 1,
			ExampleAnswer: strings.TrimSpace(row.Get(exampleColumn)),
		})
	}

	sort.Ints(order)
	entries := make([]models.RubricEntry, 0, len(order))
	for _, number := range order {
		entries = append(entries, *byQuestion[number])
	}
	return entries, nil
}

// MapStudents converts the answers file. Every question in questions and every
// Question<N>Answer column gets an entry; missing answers become NoAnswerProvided.
func MapStudents(rows []csvnorm.Row, questions []models.Question) ([]models.StudentAnswer, error) {
	if len(rows) == 0 {
		return nil, &csvnorm.ParseError{Reason: "answers file has no data rows"}
	}

	headers := rowsHeaders(rows)
	studentColumn, hasStudent := findColumn(headers, "studentnumber")
	answerColumns := numberedColumns(headers, answerHeaderPattern)

	students := make([]models.StudentAnswer, 0, len(rows))
	for _, row := range rows {
		answers := make(map[int]string, len(questions)+len(answerColumns))
		for _, question := range questions {
			answers[question.Number] = models.NoAnswerProvided
		}
		for _, column := range answerColumns {
			value := strings.TrimSpace(row.Get(column.header))
			if value == "" {
				value = models.NoAnswerProvided
			}
			answers[column.number] = value
		}

		student := models.StudentAnswer{Answers: answers}
		if hasStudent {
			student.StudentNumber = strings.TrimSpace(row.Get(studentColumn))
		}
		students = append(students, student)
	}

	return students, nil
}
