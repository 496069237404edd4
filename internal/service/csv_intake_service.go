package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/observability"
	"github.com/noah-isme/graderbot/pkg/csvnorm"
)

// Multipart part names of an upload set.
const (
	PartQuestions  = "csvFile1"
	PartScheme     = "csvFile2"
	PartAnswers    = "csvFile3"
	PartRubricFile = "rubricFile"
)

var (
	// ErrParse matches any malformed CSV or missing required column.
	ErrParse = csvnorm.ErrParse
	// ErrUploadMissingFile indicates a required part was not sent.
	ErrUploadMissingFile = errors.New("required csv file missing")
	// ErrUploadTooLarge indicates a part exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates a part is not a text file.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// UploadContents holds the decoded text of each part. The optional parts count as
// uploaded when their text is non-blank or their Has flag is set; an uploaded part
// that turns out blank is a parse error.
type UploadContents struct {
	Questions     string
	Scheme        string
	Answers       string
	RubricFile    string
	HasScheme     bool
	HasRubricFile bool
}

// CSVIntakeService turns an uploaded CSV set into structured grading inputs.
type CSVIntakeService interface {
	ParseAndMap(ctx context.Context, files map[string]*multipart.FileHeader) (dto.ParsedUpload, error)
}

type csvIntakeService struct {
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewCSVIntakeService constructs the intake service with a per-file size limit.
func NewCSVIntakeService(maxSizeMB int, logger zerolog.Logger) CSVIntakeService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &csvIntakeService{
		logger:  logger.With().Str("component", "csv_intake_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/graderbot/internal/service/csv_intake"),
	}
}

func (s *csvIntakeService) ParseAndMap(ctx context.Context, files map[string]*multipart.FileHeader) (dto.ParsedUpload, error) {
	_, span := s.tracer.Start(ctx, "csv.parse_and_map")
	defer span.End()

	started := time.Now()
	fail := func(reason string, err error) (dto.ParsedUpload, error) {
		observability.CSVUploads().WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.logger.Debug().Err(err).Str("reason", reason).Msg("csv upload rejected")
		return dto.ParsedUpload{}, err
	}

	var contents UploadContents
	targets := []struct {
		part     string
		required bool
		dest     *string
		present  *bool
	}{
		{PartQuestions, true, &contents.Questions, nil},
		{PartScheme, false, &contents.Scheme, &contents.HasScheme},
		{PartAnswers, true, &contents.Answers, nil},
		{PartRubricFile, false, &contents.RubricFile, &contents.HasRubricFile},
	}
	for _, target := range targets {
		file := files[target.part]
		if file == nil {
			if target.required {
				return fail("missing", fmt.Errorf("%s: %w", target.part, ErrUploadMissingFile))
			}
			continue
		}
		text, err := s.read(file)
		if err != nil {
			reason := "read"
			switch {
			case errors.Is(err, ErrUploadTooLarge):
				reason = "size"
			case errors.Is(err, ErrUploadTypeNotAllowed):
				reason = "type"
			}
			return fail(reason, fmt.Errorf("%s: %w", target.part, err))
		}
		*target.dest = text
		if target.present != nil {
			*target.present = true
		}
		span.SetAttributes(attribute.Int64("upload."+target.part+".bytes", file.Size))
	}

	parsed, err := MapUpload(contents)
	if err != nil {
		return fail("parse", err)
	}

	observability.CSVUploads().WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("upload.questions", len(parsed.Questions)),
		attribute.Int("upload.students", len(parsed.StudentAnswers)),
		attribute.String("upload.rubric_source", parsed.RubricSource),
	)
	s.logger.Debug().
		Int("questions", len(parsed.Questions)).
		Int("rubrics", len(parsed.GradingRubrics)).
		Int("students", len(parsed.StudentAnswers)).
		Dur("duration", time.Since(started)).
		Msg("csv upload mapped")
	return parsed, nil
}

func (s *csvIntakeService) read(file *multipart.FileHeader) (string, error) {
	if file.Size > s.maxSize {
		return "", ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return "", err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return "", err
	}
	if int64(buf.Len()) > s.maxSize {
		return "", ErrUploadTooLarge
	}

	if buf.Len() > 0 {
		detected := mimetype.Detect(buf.Bytes())
		if !strings.HasPrefix(detected.String(), "text/") {
			return "", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, detected.String())
		}
	}
	return buf.String(), nil
}

// MapUpload normalises and maps each CSV of an upload set. The free-form rubric
// file takes precedence over the grading scheme when both are present.
func MapUpload(contents UploadContents) (dto.ParsedUpload, error) {
	questionRows, err := csvnorm.Normalize(contents.Questions)
	if err != nil {
		return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartQuestions, err)
	}
	questions, err := MapQuestions(questionRows)
	if err != nil {
		return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartQuestions, err)
	}

	answerRows, err := csvnorm.Normalize(contents.Answers)
	if err != nil {
		return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartAnswers, err)
	}
	students, err := MapStudents(answerRows, questions)
	if err != nil {
		return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartAnswers, err)
	}

	rubrics := []models.RubricEntry{}
	source := ""
	switch {
	case contents.HasRubricFile || strings.TrimSpace(contents.RubricFile) != "":
		rows, err := csvnorm.Normalize(contents.RubricFile)
		if err != nil {
			return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartRubricFile, err)
		}
		if rubrics, err = MapRubricFile(rows); err != nil {
			return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartRubricFile, err)
		}
		source = PartRubricFile
	case contents.HasScheme || strings.TrimSpace(contents.Scheme) != "":
		rows, err := csvnorm.Normalize(contents.Scheme)
		if err != nil {
			return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartScheme, err)
		}
		if rubrics, err = MapRubric(rows); err != nil {
			return dto.ParsedUpload{}, fmt.Errorf("%s: %w", PartScheme, err)
		}
		source = PartScheme
	}

	return dto.ParsedUpload{
		Questions:      questions,
		GradingRubrics: rubrics,
		StudentAnswers: students,
		RubricSource:   source,
	}, nil
}
