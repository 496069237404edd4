package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/observability"
	"github.com/noah-isme/graderbot/pkg/ai"
)

// ErrBatchInProgress is returned when a batch is started while another is running.
var ErrBatchInProgress = errors.New("a grading batch is already running")

// BatchState is the lifecycle of the orchestrator's current batch.
type BatchState string

const (
	BatchIdle      BatchState = "idle"
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
)

// BatchObserver receives notifications while a batch runs. Nil callbacks are skipped.
type BatchObserver struct {
	OnResult   func(result models.GradingResult)
	OnProgress func(completed, total int)
	OnComplete func(summary BatchSummary)
}

// BatchRun describes one sequential grading pass.
type BatchRun struct {
	ID       string
	Config   BatchConfig
	Prompts  []models.GradingPrompt
	Observer BatchObserver
}

// BatchSummary totals a finished batch.
type BatchSummary struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
	Results   []models.GradingResult
}

// Response converts the summary to its API form.
func (s BatchSummary) Response() dto.BatchSummaryResponse {
	return dto.BatchSummaryResponse{
		BatchID:    s.BatchID,
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		DurationMs: float64(s.Duration) / float64(time.Millisecond),
	}
}

// GradingOrchestrator sends prompts to the model strictly one at a time.
type GradingOrchestrator interface {
	// Results returns a lazy sequence of results in prompt order. The next prompt
	// is dispatched only when the consumer asks for the next value. The sequence
	// holds the batch slot until it is exhausted or the consumer stops ranging,
	// so it must be ranged over.
	Results(ctx context.Context, run BatchRun) (iter.Seq[models.GradingResult], error)
	Run(ctx context.Context, run BatchRun) (BatchSummary, error)
	State() BatchState
}

type gradingOrchestrator struct {
	factory   GeneratorFactory
	publisher ProgressPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer

	busy  atomic.Bool
	mu    sync.RWMutex
	state BatchState
}

// NewGradingOrchestrator constructs the orchestrator. A nil publisher disables progress events.
func NewGradingOrchestrator(factory GeneratorFactory, publisher ProgressPublisher, logger zerolog.Logger) GradingOrchestrator {
	if publisher == nil {
		publisher = NoopProgressPublisher{}
	}
	return &gradingOrchestrator{
		factory:   factory,
		publisher: publisher,
		logger:    logger.With().Str("component", "grading_orchestrator").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/graderbot/internal/service/grading"),
		state:     BatchIdle,
	}
}

func (o *gradingOrchestrator) State() BatchState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *gradingOrchestrator) setState(state BatchState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *gradingOrchestrator) Results(ctx context.Context, run BatchRun) (iter.Seq[models.GradingResult], error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}

	generator, err := o.factory(run.Config)
	if err != nil {
		o.busy.Store(false)
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	o.setState(BatchRunning)

	return func(yield func(models.GradingResult) bool) {
		defer o.busy.Store(false)
		if completed := o.walk(ctx, generator, run, yield); !completed {
			o.setState(BatchIdle)
			observability.GradingBatches().WithLabelValues("abandoned").Inc()
		}
	}, nil
}

// walk reports whether every prompt was resolved and handed to the consumer.
func (o *gradingOrchestrator) walk(ctx context.Context, generator ai.Generator, run BatchRun, yield func(models.GradingResult) bool) bool {
	total := len(run.Prompts)
	ctx, span := o.tracer.Start(ctx, "grading.batch", trace.WithAttributes(
		attribute.String("grading.batch_id", run.ID),
		attribute.Int("grading.total", total),
		attribute.String("llm.model", run.Config.Model),
	))
	defer span.End()

	logger := o.logger.With().Str("batch_id", run.ID).Logger()
	if run.Config.Debug {
		logger.Info().Int("total", total).Str("endpoint", run.Config.Endpoint).Str("model", run.Config.Model).Msg("grading batch started")
	}

	started := time.Now()
	summary := BatchSummary{BatchID: run.ID, Total: total, Results: make([]models.GradingResult, 0, total)}

	for i, prompt := range run.Prompts {
		result := o.dispatch(ctx, generator, prompt, i)
		summary.Results = append(summary.Results, result)
		if result.Outcome.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		observability.GradingItems().WithLabelValues(string(result.Outcome.Kind)).Inc()

		if run.Config.Debug {
			event := logger.Info().Int("index", i).Str("student_number", result.StudentNumber).Int("question_number", result.QuestionNumber)
			if result.Outcome.Failed() {
				event.Str("error", result.Outcome.Error).Msg("grading item failed")
			} else {
				event.Str("score", result.ScoreLabel()).Msg("grading item resolved")
			}
		}

		if run.Observer.OnResult != nil {
			run.Observer.OnResult(result)
		}
		if run.Observer.OnProgress != nil {
			run.Observer.OnProgress(i+1, total)
		}
		o.publishProgress(ctx, run.ID, i+1, total)

		if !yield(result) {
			logger.Warn().Int("completed", i+1).Int("total", total).Msg("grading batch abandoned by consumer")
			return false
		}
	}

	summary.Duration = time.Since(started)
	o.setState(BatchCompleted)
	observability.GradingBatches().WithLabelValues(string(BatchCompleted)).Inc()
	observability.GradingBatchDuration().Observe(summary.Duration.Seconds())
	span.SetAttributes(attribute.Int("grading.failed", summary.Failed))

	if run.Config.Debug {
		logger.Info().Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).Dur("duration", summary.Duration).Msg("grading batch completed")
	}
	if run.Observer.OnComplete != nil {
		run.Observer.OnComplete(summary)
	}
	return true
}

func (o *gradingOrchestrator) Run(ctx context.Context, run BatchRun) (BatchSummary, error) {
	var summary BatchSummary
	observer := run.Observer
	onComplete := observer.OnComplete
	observer.OnComplete = func(s BatchSummary) {
		summary = s
		if onComplete != nil {
			onComplete(s)
		}
	}
	run.Observer = observer

	results, err := o.Results(ctx, run)
	if err != nil {
		return BatchSummary{}, err
	}
	for range results {
	}
	return summary, nil
}

func (o *gradingOrchestrator) dispatch(ctx context.Context, generator ai.Generator, prompt models.GradingPrompt, index int) models.GradingResult {
	ctx, span := o.tracer.Start(ctx, "grading.item", trace.WithAttributes(
		attribute.Int("grading.index", index),
		attribute.Int("grading.question_number", prompt.QuestionNumber),
		attribute.String("grading.student_number", prompt.StudentNumber),
	))
	defer span.End()

	result := models.GradingResult{
		Index:          index,
		StudentNumber:  prompt.StudentNumber,
		QuestionNumber: prompt.QuestionNumber,
		MaximumScore:   prompt.MaxScore,
	}

	reply, err := generator.Generate(ctx, ai.GenerateRequest{
		Prompt: prompt.Text,
		JSON:   prompt.Format == models.PromptFormatJSON,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		result.Outcome = models.FailureOutcome(dispatchErrorMessage(err))
		return result
	}

	result.Outcome = ResolveOutcome(reply, prompt.Format, prompt.MaxScore)
	if result.Outcome.Failed() {
		span.SetStatus(codes.Error, result.Outcome.Error)
	}
	return result
}

func (o *gradingOrchestrator) publishProgress(ctx context.Context, batchID string, completed, total int) {
	event := dto.GradingEvent{
		Type:      dto.GradingEventProgress,
		BatchID:   batchID,
		Completed: completed,
		Total:     total,
		Percent:   ProgressPercent(completed, total),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("batch_id", batchID).Msg("failed to publish grading progress")
	}
}

// ProgressPercent returns completed/total as a percentage; an empty batch is 100.
func ProgressPercent(completed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(completed) / float64(total) * 100
}

func dispatchErrorMessage(err error) string {
	var statusErr *ai.StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Body != "" {
			return fmt.Sprintf("LLM endpoint returned HTTP %d: %s", statusErr.StatusCode, statusErr.Body)
		}
		return fmt.Sprintf("LLM endpoint returned HTTP %d", statusErr.StatusCode)
	case errors.Is(err, context.Canceled):
		return "grading request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "grading request timed out"
	default:
		return err.Error()
	}
}
