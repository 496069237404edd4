package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/models"
)

func TestResolveOutcome(t *testing.T) {
	cases := []struct {
		name   string
		reply  string
		format models.PromptFormat
		want   models.GradingOutcome
	}{
		{"fraction", "4/6", models.PromptFormatText, models.ScoreTextOutcome("4/6")},
		{"fraction_in_sentence", "The score is 3 / 5.", models.PromptFormatText, models.ScoreTextOutcome("3/5")},
		{"bare_number", " 2 ", models.PromptFormatText, models.ScoreTextOutcome("2/6")},
		{"free_text", "excellent", models.PromptFormatText, models.ScoreTextOutcome("excellent")},
		{"json_object", `{"score": 5, "maximumScore": 6}`, models.PromptFormatJSON, models.StructuredOutcome(5, 6)},
		{"json_defaults_maximum", "Sure: {\"score\": 1.5}", models.PromptFormatJSON, models.StructuredOutcome(1.5, 6)},
		{"json_in_text_mode", `{"score": "4"}`, models.PromptFormatText, models.StructuredOutcome(4, 6)},
		{"json_string_score", `{"score": "good"}`, models.PromptFormatJSON, models.ScoreTextOutcome("good")},
		{"empty", "   ", models.PromptFormatText, models.FailureOutcome("empty response from model")},
		{"json_missing_object", "4/6", models.PromptFormatJSON, models.FailureOutcome("unparsable model response: no JSON object found")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveOutcome(tc.reply, tc.format, 6))
		})
	}
}

func TestResolveOutcomeRejectsSchemaViolation(t *testing.T) {
	outcome := ResolveOutcome(`{"grade": 3}`, models.PromptFormatJSON, 5)
	require.True(t, outcome.Failed())
	require.Contains(t, outcome.Error, "unparsable model response")

	outcome = ResolveOutcome(`{"grade": 3}`, models.PromptFormatText, 5)
	require.Equal(t, models.OutcomeScoreText, outcome.Kind)
}
