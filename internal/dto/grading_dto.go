package dto

import (
	"github.com/noah-isme/graderbot/internal/models"
)

// ParsedUpload is the structured form of an uploaded CSV set.
type ParsedUpload struct {
	Questions      []models.Question      `json:"questions"`
	GradingRubrics []models.RubricEntry   `json:"gradingRubrics"`
	StudentAnswers []models.StudentAnswer `json:"studentAnswers"`
	// RubricSource names the upload part the rubrics came from, if any.
	RubricSource string `json:"rubricSource,omitempty"`
}

// CompilePromptsRequest asks the server to build grading prompts for a parsed upload.
type CompilePromptsRequest struct {
	Questions      []models.Question      `json:"questions" validate:"required,min=1"`
	GradingRubrics []models.RubricEntry   `json:"gradingRubrics"`
	StudentAnswers []models.StudentAnswer `json:"studentAnswers" validate:"required,min=1"`
	Course         string                 `json:"course" validate:"omitempty,max=128"`
	Format         string                 `json:"format" validate:"omitempty,oneof=text json"`
}

// CompilePromptsResponse lists prompts in dispatch order.
type CompilePromptsResponse struct {
	Prompts []models.GradingPrompt `json:"prompts"`
	Total   int                    `json:"total"`
}

// BatchOverrides lets a client point one batch at a different endpoint or model.
type BatchOverrides struct {
	LLMURL    string `json:"llmUrl" validate:"omitempty,url"`
	Model     string `json:"model" validate:"omitempty,max=128"`
	DebugMode *bool  `json:"debugMode"`
}

// GradeBatchRequest starts a sequential grading run.
type GradeBatchRequest struct {
	Prompts []models.GradingPrompt `json:"prompts" validate:"required,min=1"`
	BatchOverrides
}

// Grading event types streamed to clients.
const (
	GradingEventResult   = "result"
	GradingEventProgress = "progress"
	GradingEventComplete = "complete"
	GradingEventError    = "error"
)

// GradingEvent is one line of a batch stream, and the payload published for progress.
type GradingEvent struct {
	Type      string                `json:"type"`
	BatchID   string                `json:"batchId"`
	Result    *models.GradingResult `json:"result,omitempty"`
	Completed int                   `json:"completed"`
	Total     int                   `json:"total"`
	Percent   float64               `json:"percent"`
	Summary   *BatchSummaryResponse `json:"summary,omitempty"`
	Message   string                `json:"message,omitempty"`
}

// BatchSummaryResponse reports the totals of a finished run.
type BatchSummaryResponse struct {
	BatchID    string  `json:"batchId"`
	Total      int     `json:"total"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	DurationMs float64 `json:"durationMs"`
}

// ResultsRequest carries results back to the server for export or reporting.
type ResultsRequest struct {
	Results []models.GradingResult `json:"results" validate:"required"`
}

// StudentReport groups one student's results in prompt order.
type StudentReport struct {
	StudentNumber string                 `json:"studentNumber"`
	Results       []models.GradingResult `json:"results"`
}

// ReportResponse is the display form of a result set.
type ReportResponse struct {
	Students []StudentReport `json:"students"`
	HTML     string          `json:"html"`
}
