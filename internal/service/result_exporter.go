package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/models"
)

// ErrExport indicates results could not be serialised.
var ErrExport = errors.New("export failed")

// ExportHeader is the header row of the CSV export.
var ExportHeader = []string{"Student Number", "Response"}

var reportPolicy = newReportPolicy()

func newReportPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowStyling()
	return policy
}

// GroupByStudent groups results by student number in order of first appearance.
// Results inside a group keep their input order. The input is not modified.
func GroupByStudent(results []models.GradingResult) []dto.StudentReport {
	groups := make([]dto.StudentReport, 0)
	positions := make(map[string]int)
	for _, result := range results {
		pos, ok := positions[result.StudentNumber]
		if !ok {
			pos = len(groups)
			positions[result.StudentNumber] = pos
			groups = append(groups, dto.StudentReport{StudentNumber: result.StudentNumber})
		}
		groups[pos].Results = append(groups[pos].Results, result)
	}
	return groups
}

// ToCSV writes one row per result: the student number and the JSON response.
// The output is deterministic for a given input.
func ToCSV(results []models.GradingResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(ExportHeader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}
	for i, result := range results {
		// encoding/json sorts map keys, so the cell is stable across calls.
		response, err := json.Marshal(result.Response())
		if err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrExport, i, err)
		}
		if err := writer.Write([]string{result.StudentNumber, string(response)}); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrExport, i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}
	return buf.Bytes(), nil
}

// RenderHTML renders grouped results as a sanitised table per student.
func RenderHTML(groups []dto.StudentReport) (string, error) {
	var b strings.Builder
	for _, group := range groups {
		student := group.StudentNumber
		if student == "" {
			student = "(no student number)"
		}

		b.WriteString(`<section class="student-result"><h3>Student `)
		b.WriteString(html.EscapeString(student))
		b.WriteString("</h3><table><thead><tr><th>Question</th><th>Score</th></tr></thead><tbody>")
		for _, result := range group.Results {
			b.WriteString("<tr><td>")
			b.WriteString(strconv.Itoa(result.QuestionNumber))
			b.WriteString("</td><td>")
			if result.Outcome.Failed() {
				b.WriteString(`<span class="error">Error: `)
				b.WriteString(html.EscapeString(result.Outcome.Error))
				b.WriteString("</span>")
			} else {
				b.WriteString(html.EscapeString(result.ScoreLabel()))
			}
			b.WriteString("</td></tr>")
		}
		b.WriteString("</tbody></table></section>")
	}

	return reportPolicy.Sanitize(b.String()), nil
}
