package models

import (
	"encoding/json"
	"strconv"
)

// NoAnswerProvided replaces a student's answer when the upload carries none.
const NoAnswerProvided = "No answer provided"

// Question is a single exam question parsed from the questions file.
type Question struct {
	Number   int     `json:"questionNumber"`
	Text     string  `json:"question"`
	MaxScore float64 `json:"maximumScore"`
}

// RubricLevel describes what an answer at Score looks like. An empty
// ExampleAnswer means the grader extrapolates from neighbouring levels.
type RubricLevel struct {
	Score         int    `json:"score"`
	ExampleAnswer string `json:"exampleAnswer"`
}

// RubricEntry holds the ordered rubric levels for one question. Levels[i] has Score i+1.
type RubricEntry struct {
	QuestionNumber int           `json:"questionNumber"`
	Levels         []RubricLevel `json:"entries"`
}

// StudentAnswer maps question numbers to one student's answers.
type StudentAnswer struct {
	StudentNumber string         `json:"studentNumber"`
	Answers       map[int]string `json:"answers"`
}

// Answer returns the answer for question, falling back to NoAnswerProvided.
func (s StudentAnswer) Answer(question int) string {
	if answer, ok := s.Answers[question]; ok && answer != "" {
		return answer
	}
	return NoAnswerProvided
}

// PromptFormat selects how the model is asked to report a score.
type PromptFormat string

const (
	// PromptFormatText asks for a bare "score/max" reply.
	PromptFormatText PromptFormat = "text"
	// PromptFormatJSON asks for a {"score", "maximumScore"} object.
	PromptFormatJSON PromptFormat = "json"
)

// Valid reports whether f is a supported format.
func (f PromptFormat) Valid() bool {
	return f == PromptFormatText || f == PromptFormatJSON
}

// GradingPrompt is the compiled request for one (question, student) pair.
type GradingPrompt struct {
	Index          int          `json:"index"`
	StudentNumber  string       `json:"studentNumber"`
	QuestionNumber int          `json:"questionNumber"`
	MaxScore       float64      `json:"maximumScore"`
	Format         PromptFormat `json:"format"`
	Text           string       `json:"prompt"`
}

// OutcomeKind tags a GradingOutcome.
type OutcomeKind string

const (
	OutcomeScoreText  OutcomeKind = "score_text"
	OutcomeStructured OutcomeKind = "structured"
	OutcomeFailure    OutcomeKind = "failure"
)

// GradingOutcome is the resolved model reply. Exactly one group of fields is
// meaningful, selected by Kind.
type GradingOutcome struct {
	Kind         OutcomeKind
	ScoreText    string
	Score        float64
	MaximumScore float64
	Error        string
}

// ScoreTextOutcome wraps a free-form score reply such as "4/6".
func ScoreTextOutcome(text string) GradingOutcome {
	return GradingOutcome{Kind: OutcomeScoreText, ScoreText: text}
}

// StructuredOutcome wraps a parsed {score, maximumScore} reply.
func StructuredOutcome(score, maximum float64) GradingOutcome {
	return GradingOutcome{Kind: OutcomeStructured, Score: score, MaximumScore: maximum}
}

// FailureOutcome records why an item could not be graded.
func FailureOutcome(message string) GradingOutcome {
	return GradingOutcome{Kind: OutcomeFailure, Error: message}
}

// Failed reports whether the outcome is a failure.
func (o GradingOutcome) Failed() bool {
	return o.Kind == OutcomeFailure
}

// GradingResult pairs an outcome with the prompt it answers.
type GradingResult struct {
	Index          int
	StudentNumber  string
	QuestionNumber int
	MaximumScore   float64
	Outcome        GradingOutcome
}

// Response returns the per-result payload used by the API and the CSV export.
// The student number is left out; callers add it where needed.
func (r GradingResult) Response() map[string]any {
	if r.Outcome.Failed() {
		return map[string]any{
			"questionNumber": r.QuestionNumber,
			"error":          r.Outcome.Error,
		}
	}

	payload := map[string]any{
		"questionNumber": r.QuestionNumber,
		"maximumScore":   r.MaximumScore,
	}
	switch r.Outcome.Kind {
	case OutcomeStructured:
		payload["score"] = r.Outcome.Score
		if r.Outcome.MaximumScore > 0 {
			payload["maximumScore"] = r.Outcome.MaximumScore
		}
	default:
		payload["score"] = r.Outcome.ScoreText
	}
	return payload
}

// ScoreLabel renders the score for display, e.g. "4/6".
func (r GradingResult) ScoreLabel() string {
	switch r.Outcome.Kind {
	case OutcomeFailure:
		return ""
	case OutcomeStructured:
		maximum := r.Outcome.MaximumScore
		if maximum <= 0 {
			maximum = r.MaximumScore
		}
		return formatNumber(r.Outcome.Score) + "/" + formatNumber(maximum)
	default:
		return r.Outcome.ScoreText
	}
}

// MarshalJSON emits {studentNumber, questionNumber, score, maximumScore} or
// {studentNumber, questionNumber, error}.
func (r GradingResult) MarshalJSON() ([]byte, error) {
	payload := r.Response()
	payload["index"] = r.Index
	payload["studentNumber"] = r.StudentNumber
	return json.Marshal(payload)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *GradingResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index          int             `json:"index"`
		StudentNumber  string          `json:"studentNumber"`
		QuestionNumber int             `json:"questionNumber"`
		Score          json.RawMessage `json:"score"`
		MaximumScore   float64         `json:"maximumScore"`
		Error          *string         `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Index = raw.Index
	r.StudentNumber = raw.StudentNumber
	r.QuestionNumber = raw.QuestionNumber
	r.MaximumScore = raw.MaximumScore

	switch {
	case raw.Error != nil:
		r.Outcome = FailureOutcome(*raw.Error)
	case len(raw.Score) > 0 && raw.Score[0] == '"':
		var text string
		if err := json.Unmarshal(raw.Score, &text); err != nil {
			return err
		}
		r.Outcome = ScoreTextOutcome(text)
	default:
		var score float64
		if len(raw.Score) > 0 {
			if err := json.Unmarshal(raw.Score, &score); err != nil {
				return err
			}
		}
		r.Outcome = StructuredOutcome(score, raw.MaximumScore)
	}
	return nil
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
