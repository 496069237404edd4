package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/graderbot/internal/models"
)

const scoreReplySchema = `{
	"type": "object",
	"required": ["score"],
	"properties": {
		"score": {"type": ["number", "string"]},
		"maximumScore": {"type": ["number", "string"]}
	}
}`

var (
	scoreSchema       = jsonschema.MustCompileString("score-reply.json", scoreReplySchema)
	fractionPattern   = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`)
	bareNumberPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// ResolveOutcome interprets a model reply once so later stages never re-parse it.
// JSON replies become structured outcomes; text replies keep the score text.
func ResolveOutcome(reply string, format models.PromptFormat, maxScore float64) models.GradingOutcome {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return models.FailureOutcome("empty response from model")
	}

	if object, ok := extractJSONObject(trimmed); ok {
		outcome, err := structuredOutcome(object, maxScore)
		if err == nil {
			return outcome
		}
		if format == models.PromptFormatJSON {
			return models.FailureOutcome(fmt.Sprintf("unparsable model response: %v", err))
		}
	} else if format == models.PromptFormatJSON {
		return models.FailureOutcome("unparsable model response: no JSON object found")
	}

	if match := fractionPattern.FindStringSubmatch(trimmed); match != nil {
		return models.ScoreTextOutcome(match[1] + "/" + match[2])
	}
	if bareNumberPattern.MatchString(trimmed) {
		return models.ScoreTextOutcome(trimmed + "/" + formatScore(maxScore))
	}
	return models.ScoreTextOutcome(trimmed)
}

func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func structuredOutcome(object string, maxScore float64) (models.GradingOutcome, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(object)))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return models.GradingOutcome{}, err
	}
	if err := scoreSchema.Validate(payload); err != nil {
		return models.GradingOutcome{}, err
	}

	fields := payload.(map[string]any)
	maximum := maxScore
	if raw, ok := fields["maximumScore"]; ok {
		if parsed, ok := numericValue(raw); ok && parsed > 0 {
			maximum = parsed
		}
	}

	score, ok := numericValue(fields["score"])
	if !ok {
		text := strings.TrimSpace(fmt.Sprint(fields["score"]))
		if text == "" {
			return models.GradingOutcome{}, fmt.Errorf("score is empty")
		}
		return models.ScoreTextOutcome(text), nil
	}
	return models.StructuredOutcome(score, maximum), nil
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
